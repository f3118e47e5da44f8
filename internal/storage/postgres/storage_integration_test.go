//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wye/wye-server/internal/model"
	"github.com/wye/wye-server/internal/storage/postgres"
)

var _ = Describe("Storage", Ordered, func() {
	var (
		ctx       context.Context
		container *tcpostgres.PostgresContainer
		store     *postgres.Storage
	)

	BeforeAll(func() {
		ctx = context.Background()

		var err error
		container, err = tcpostgres.Run(ctx,
			"postgres:18-alpine",
			tcpostgres.WithDatabase("wye_test"),
			tcpostgres.WithUsername("wye"),
			tcpostgres.WithPassword("wye"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err := container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err := postgres.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrator.Up()).To(Succeed())
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(dirty).To(BeFalse())
		Expect(version).To(BeNumerically(">=", 1))
		Expect(migrator.Close()).To(Succeed())

		cfg := postgres.DefaultConfig()
		cfg.URL = connStr
		store, err = postgres.New(ctx, cfg)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if store != nil {
			_ = store.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	newUser := func(email string) *model.User {
		return &model.User{
			ID:           model.NewUserID(),
			Email:        email,
			Pseudo:       "Romain",
			PasswordHash: "hash",
			IsActive:     true,
			DateJoined:   time.Now().UTC().Truncate(time.Microsecond),
		}
	}

	Describe("users", func() {
		It("round-trips a user by email", func() {
			user := newUser("romain@wye.com")
			Expect(store.CreateUser(ctx, user)).To(Succeed())

			got, err := store.GetUserByEmail(ctx, "romain@wye.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(user.ID))
			Expect(got.DateJoined.Equal(user.DateJoined)).To(BeTrue())
		})

		It("rejects a duplicate email and keeps the first account", func() {
			first := newUser("dup@wye.com")
			Expect(store.CreateUser(ctx, first)).To(Succeed())

			second := newUser("dup@wye.com")
			second.Pseudo = "Other"
			Expect(store.CreateUser(ctx, second)).To(MatchError(model.ErrEmailTaken))

			got, err := store.GetUserByEmail(ctx, "dup@wye.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(first.ID))
		})

		It("lets exactly one concurrent registration win", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			wins := 0
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					if store.CreateUser(ctx, newUser("race@wye.com")) == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			Expect(wins).To(Equal(1))
		})
	})

	Describe("sessions", func() {
		It("saves, resolves and deletes by token hash", func() {
			user := newUser("session@wye.com")
			Expect(store.CreateUser(ctx, user)).To(Succeed())

			now := time.Now().UTC().Truncate(time.Microsecond)
			session := &model.Session{
				ID:        model.NewSessionID(),
				TokenHash: "hash-1",
				UserID:    user.ID,
				CreatedAt: now,
				ExpiresAt: now.Add(time.Hour),
			}
			Expect(store.SaveSession(ctx, session)).To(Succeed())

			got, err := store.GetSession(ctx, "hash-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.UserID).To(Equal(user.ID))

			Expect(store.DeleteSession(ctx, "hash-1")).To(Succeed())
			_, err = store.GetSession(ctx, "hash-1")
			Expect(err).To(MatchError(model.ErrSessionNotFound))
		})

		It("purges only expired sessions", func() {
			user := newUser("purge@wye.com")
			Expect(store.CreateUser(ctx, user)).To(Succeed())

			now := time.Now().UTC()
			Expect(store.SaveSession(ctx, &model.Session{
				ID: model.NewSessionID(), TokenHash: "expired", UserID: user.ID,
				CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
			})).To(Succeed())
			Expect(store.SaveSession(ctx, &model.Session{
				ID: model.NewSessionID(), TokenHash: "live", UserID: user.ID,
				CreatedAt: now, ExpiresAt: now.Add(time.Hour),
			})).To(Succeed())

			n, err := store.DeleteExpiredSessions(ctx, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeNumerically(">=", 1))

			_, err = store.GetSession(ctx, "live")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("room sessions", func() {
		It("lists only the owner's records in insertion order", func() {
			alice := newUser("alice@wye.com")
			bob := newUser("bob@wye.com")
			Expect(store.CreateUser(ctx, alice)).To(Succeed())
			Expect(store.CreateUser(ctx, bob)).To(Succeed())

			played := time.Date(2001, 1, 1, 12, 0, 0, 0, time.UTC)
			for _, rs := range []*model.RoomSession{
				{ID: model.NewRoomSessionID(), OwnerID: alice.ID, Name: "Toulouse", PlayedAt: played, Duration: 50 * time.Minute, NumberOfHints: 2},
				{ID: model.NewRoomSessionID(), OwnerID: bob.ID, Name: "Paris", PlayedAt: played},
				{ID: model.NewRoomSessionID(), OwnerID: alice.ID, Name: "Youkidea", PlayedAt: played, Duration: 20 * time.Minute},
			} {
				Expect(store.SaveRoomSession(ctx, rs)).To(Succeed())
			}

			got, err := store.ListRoomSessionsByOwner(ctx, alice.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(2))
			Expect(got[0].Name).To(Equal("Toulouse"))
			Expect(got[0].Duration).To(Equal(50 * time.Minute))
			Expect(got[1].Name).To(Equal("Youkidea"))
		})
	})
})
