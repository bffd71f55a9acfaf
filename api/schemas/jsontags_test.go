package schemas_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/seatctl/api/schemas"
)

// TestStructJSONTags pins the json tags of persisted and served structs. Jobs are stored as
// JSON columns and cookies are replayed into the browser, so a renamed tag loses data.
func TestStructJSONTags(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name         string
		structRef    interface{}
		expectedTags map[string]string
	}{
		{
			name:      "InviteJob",
			structRef: schemas.InviteJob{},
			expectedTags: map[string]string{
				"ID":           "id",
				"AccountID":    "account_id",
				"Addresses":    "addresses",
				"Role":         "role",
				"Status":       "status",
				"Outcomes":     "outcomes",
				"TotalCount":   "total_count",
				"SuccessCount": "success_count",
				"FailCount":    "fail_count",
				"Error":        "error,omitempty",
				"CreatedAt":    "created_at",
				"UpdatedAt":    "updated_at",
			},
		},
		{
			name:      "InviteOutcome",
			structRef: schemas.InviteOutcome{},
			expectedTags: map[string]string{
				"Email":  "email",
				"Status": "status",
				"Error":  "error,omitempty",
				"Note":   "note,omitempty",
			},
		},
		{
			name:      "Cookie",
			structRef: schemas.Cookie{},
			expectedTags: map[string]string{
				"Name":     "name",
				"Value":    "value",
				"Domain":   "domain",
				"Path":     "path",
				"Expires":  "expires,omitempty",
				"HTTPOnly": "http_only,omitempty",
				"Secure":   "secure,omitempty",
				"SameSite": "same_site,omitempty",
			},
		},
		{
			name:      "ProgressEvent",
			structRef: schemas.ProgressEvent{},
			expectedTags: map[string]string{
				"Index":   "index",
				"Total":   "total",
				"Address": "address",
				"Status":  "status",
				"Error":   "error,omitempty",
			},
		},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expectedTags, jsonTags(tt.structRef), "JSON tags for struct %s do not match expectations", tt.name)
		})
	}
}

func TestAccountNeverSerializesItsPassword(t *testing.T) {
	t.Parallel()
	tags := jsonTags(schemas.Account{})
	assert.Equal(t, "-", tags["EncryptedPassword"])
	assert.Equal(t, "cookies,omitempty", tags["Cookies"])
}

func jsonTags(v interface{}) map[string]string {
	structType := reflect.TypeOf(v)
	tags := make(map[string]string)
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if tag := field.Tag.Get("json"); tag != "" {
			tags[field.Name] = tag
		}
	}
	return tags
}
