package gql

import (
	"encoding/json"
	"fmt"
	"time"
)

// dateTimeLayout renders offsets as "+00:00" rather than "Z"
const dateTimeLayout = "2006-01-02T15:04:05-07:00"

// DateTime is the GraphQL DateTime scalar. Input is RFC 3339, output is UTC.
type DateTime struct {
	time.Time
}

// ImplementsGraphQLType maps this type to the DateTime scalar
func (DateTime) ImplementsGraphQLType(name string) bool {
	return name == "DateTime"
}

// UnmarshalGraphQL parses an RFC 3339 string
func (t *DateTime) UnmarshalGraphQL(input interface{}) error {
	switch v := input.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return fmt.Errorf("invalid DateTime %q: expected RFC 3339", v)
		}
		t.Time = parsed
		return nil
	case time.Time:
		t.Time = v
		return nil
	default:
		return fmt.Errorf("wrong type for DateTime: %T", input)
	}
}

// MarshalJSON renders the time in UTC
func (t DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(dateTimeLayout))
}
