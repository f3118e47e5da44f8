package gql

// sharedSchema holds the types both surfaces expose.
const sharedSchema = `
scalar DateTime

type User {
	id: ID!
	email: String!
	pseudo: String!
	firstName: String!
	lastName: String!
	dateJoined: DateTime!
	isActive: Boolean!
	isStaff: Boolean!
	isSuperuser: Boolean!
}
`

const publicSchema = `
schema {
	query: Query
	mutation: Mutation
}

type CreateUser {
	user: User
}

type LoginUser {
	user: User
}

type Query {
	me: User
}

type Mutation {
	createUser(email: String!, pseudo: String!, password: String!): CreateUser
	loginUser(email: String!, password: String!): LoginUser
}
` + sharedSchema

const privateSchema = `
schema {
	query: Query
	mutation: Mutation
}

type RoomSession {
	id: ID!
	name: String!
	playedDatetime: DateTime!
	durationTime: Float!
	numberOfHints: Int!
}

type LogoutUser {
	user: User
}

type CreateRoomSession {
	roomSession: RoomSession
}

type Query {
	whoami: String!
	me: User!
	roomSessions: [RoomSession!]!
}

type Mutation {
	logoutUser: LogoutUser
	createRoomSession(name: String!, playedDatetime: DateTime!, durationTime: Float!, numberOfHints: Int!): CreateRoomSession
}
` + sharedSchema
