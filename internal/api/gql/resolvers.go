package gql

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/graph-gophers/graphql-go"

	"github.com/wye/wye-server/internal/api/middleware"
	"github.com/wye/wye-server/internal/model"
	"github.com/wye/wye-server/internal/observability"
	"github.com/wye/wye-server/internal/services/accounts"
	"github.com/wye/wye-server/internal/services/rooms"
	"github.com/wye/wye-server/internal/services/sessions"
)

// Services are the dependencies the resolvers call into
type Services struct {
	Accounts *accounts.Service
	Sessions *sessions.Service
	Rooms    *rooms.Service
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// PublicResolver is the root resolver of the public surface
type PublicResolver struct {
	svc Services
}

// PrivateResolver is the root resolver of the private surface. Every request
// reaching it has passed the authentication gate.
type PrivateResolver struct {
	svc Services
}

// Me returns the caller, or null when anonymous
func (r *PublicResolver) Me(ctx context.Context) *userResolver {
	return newUserResolver(middleware.GetUser(ctx))
}

type createUserArgs struct {
	Email    string
	Pseudo   string
	Password string
}

// CreateUser registers an account and logs it in
func (r *PublicResolver) CreateUser(ctx context.Context, args createUserArgs) (*userPayload, error) {
	user, err := r.svc.Accounts.Register(ctx, args.Email, args.Pseudo, args.Password)
	if err != nil {
		r.svc.Metrics.AuthEvent(observability.EventRegisterFailed)
		return nil, resolveError(ctx, r.svc.Logger, "register", err)
	}

	if err := r.login(ctx, user); err != nil {
		return nil, err
	}

	r.svc.Metrics.AuthEvent(observability.EventRegister)
	r.svc.Logger.InfoContext(ctx, "user registered",
		slog.String("user_id", string(user.ID)),
		slog.String("request_id", requestID(ctx)),
	)
	return &userPayload{user: user}, nil
}

type loginUserArgs struct {
	Email    string
	Password string
}

// LoginUser opens a session. Wrong credentials yield {user: null}.
func (r *PublicResolver) LoginUser(ctx context.Context, args loginUserArgs) (*userPayload, error) {
	user, err := r.svc.Accounts.VerifyCredentials(ctx, args.Email, args.Password)
	if err != nil {
		return nil, resolveError(ctx, r.svc.Logger, "verify credentials", err)
	}
	if user == nil {
		r.svc.Metrics.AuthEvent(observability.EventLoginFailed)
		return &userPayload{}, nil
	}

	if err := r.login(ctx, user); err != nil {
		return nil, err
	}

	r.svc.Metrics.AuthEvent(observability.EventLoginSucceeded)
	return &userPayload{user: user}, nil
}

// login drops any session the request arrived with, then issues a new one
func (r *PublicResolver) login(ctx context.Context, user *model.User) error {
	if current := middleware.GetPrincipal(ctx); current != nil {
		if err := r.svc.Sessions.Invalidate(ctx, current.Token); err != nil {
			return resolveError(ctx, r.svc.Logger, "rotate session", err)
		}
	}

	token, session, err := r.svc.Sessions.Create(ctx, user)
	if err != nil {
		return resolveError(ctx, r.svc.Logger, "create session", err)
	}
	issueSession(ctx, token, session.ExpiresAt)
	return nil
}

// Whoami describes the caller
func (r *PrivateResolver) Whoami(ctx context.Context) string {
	return "I am " + middleware.MustGetPrincipal(ctx).User.Email
}

// Me returns the caller
func (r *PrivateResolver) Me(ctx context.Context) *userResolver {
	return newUserResolver(middleware.MustGetPrincipal(ctx).User)
}

// RoomSessions lists the caller's room sessions
func (r *PrivateResolver) RoomSessions(ctx context.Context) ([]*roomSessionResolver, error) {
	owner := middleware.MustGetPrincipal(ctx).User
	list, err := r.svc.Rooms.ListForOwner(ctx, owner)
	if err != nil {
		return nil, resolveError(ctx, r.svc.Logger, "list room sessions", err)
	}

	out := make([]*roomSessionResolver, 0, len(list))
	for _, rs := range list {
		out = append(out, &roomSessionResolver{rs: rs})
	}
	return out, nil
}

// LogoutUser invalidates the presented session and clears the cookie
func (r *PrivateResolver) LogoutUser(ctx context.Context) (*userPayload, error) {
	principal := middleware.MustGetPrincipal(ctx)
	if err := r.svc.Sessions.Invalidate(ctx, principal.Token); err != nil {
		return nil, resolveError(ctx, r.svc.Logger, "logout", err)
	}
	clearSession(ctx)
	r.svc.Metrics.AuthEvent(observability.EventLogout)
	return nil, nil
}

type createRoomSessionArgs struct {
	Name           string
	PlayedDatetime DateTime
	DurationTime   float64
	NumberOfHints  int32
}

// CreateRoomSession records a room session owned by the caller
func (r *PrivateResolver) CreateRoomSession(ctx context.Context, args createRoomSessionArgs) (*roomSessionPayload, error) {
	duration, err := secondsToDuration(args.DurationTime)
	if err != nil {
		return nil, resolveError(ctx, r.svc.Logger, "create room session", err)
	}

	owner := middleware.MustGetPrincipal(ctx).User
	rs, err := r.svc.Rooms.Create(ctx, owner, rooms.CreateInput{
		Name:          args.Name,
		PlayedAt:      args.PlayedDatetime.Time,
		Duration:      duration,
		NumberOfHints: int(args.NumberOfHints),
	})
	if err != nil {
		return nil, resolveError(ctx, r.svc.Logger, "create room session", err)
	}

	r.svc.Metrics.RoomSessions.Inc()
	return &roomSessionPayload{rs: rs}, nil
}

// maxSeconds is the largest duration time.Duration can hold, in seconds
var maxSeconds = float64(math.MaxInt64) / float64(time.Second)

func secondsToDuration(seconds float64) (time.Duration, error) {
	switch {
	case math.IsNaN(seconds) || math.IsInf(seconds, 0):
		return 0, model.NewValidationError("durationTime", "must be a finite number")
	case seconds < 0:
		return 0, model.NewValidationError("durationTime", "must be greater than or equal to 0")
	case seconds >= maxSeconds:
		return 0, model.NewValidationError("durationTime", "is too large")
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// userPayload backs CreateUser, LoginUser and LogoutUser
type userPayload struct {
	user *model.User
}

func (p *userPayload) User() *userResolver {
	return newUserResolver(p.user)
}

type roomSessionPayload struct {
	rs *model.RoomSession
}

func (p *roomSessionPayload) RoomSession() *roomSessionResolver {
	return &roomSessionResolver{rs: p.rs}
}

type userResolver struct {
	u *model.User
}

func newUserResolver(u *model.User) *userResolver {
	if u == nil {
		return nil
	}
	return &userResolver{u: u}
}

func (r *userResolver) ID() graphql.ID       { return graphql.ID(r.u.ID) }
func (r *userResolver) Email() string        { return r.u.Email }
func (r *userResolver) Pseudo() string       { return r.u.Pseudo }
func (r *userResolver) FirstName() string    { return r.u.FirstName }
func (r *userResolver) LastName() string     { return r.u.LastName }
func (r *userResolver) DateJoined() DateTime { return DateTime{r.u.DateJoined} }
func (r *userResolver) IsActive() bool       { return r.u.IsActive }
func (r *userResolver) IsStaff() bool        { return r.u.IsStaff }
func (r *userResolver) IsSuperuser() bool    { return r.u.IsSuperuser }

type roomSessionResolver struct {
	rs *model.RoomSession
}

func (r *roomSessionResolver) ID() graphql.ID           { return graphql.ID(r.rs.ID) }
func (r *roomSessionResolver) Name() string             { return r.rs.Name }
func (r *roomSessionResolver) PlayedDatetime() DateTime { return DateTime{r.rs.PlayedAt} }
func (r *roomSessionResolver) DurationTime() float64    { return r.rs.Duration.Seconds() }
func (r *roomSessionResolver) NumberOfHints() int32     { return int32(r.rs.NumberOfHints) }
