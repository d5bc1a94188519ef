package secretdoc_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/multisecret/pkg/secretdoc"
)

func TestDocumentKeepsDeclaredOrder(t *testing.T) {
	doc := secretdoc.NewDocument()
	doc.Set("zeta", secretdoc.StringValue("z"))
	doc.Set("alpha", secretdoc.StringValue("a"))
	doc.Set("zeta", secretdoc.StringValue("z2"))

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	assert.Equal(t, `{"zeta":"z2","alpha":"a"}`, string(data))
	assert.Equal(t, []string{"zeta", "alpha"}, doc.Keys())
	assert.Equal(t, 2, doc.Len())
}

func TestObjectSetReplacesInPlace(t *testing.T) {
	obj, err := secretdoc.ParseObject([]byte(`{"password":"old","user":"admin"}`))
	require.NoError(t, err)

	obj.Set("password", "new")
	obj.Set("host", "db.internal")

	data, err := obj.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"password":"new","user":"admin","host":"db.internal"}`, string(data))
}

func TestObjectKeepsNestedValues(t *testing.T) {
	obj, err := secretdoc.ParseObject([]byte(`{ "user": "admin", "port": 5432, "opts": {"ssl": true} }`))
	require.NoError(t, err)

	obj.Set("password", "p")

	data, err := obj.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"user":"admin","port":5432,"opts":{"ssl":true},"password":"p"}`, string(data))

	user, ok := obj.GetString("user")
	assert.True(t, ok)
	assert.Equal(t, "admin", user)
	_, ok = obj.GetString("port")
	assert.False(t, ok)
}

func TestParseObjectErrors(t *testing.T) {
	tests := map[string]string{
		"array":     `["a"]`,
		"truncated": `{"a":`,
		"duplicate": `{"a":"1","a":"2"}`,
		"trailing":  `{"a":"1"} {}`,
		"scalar":    `"a"`,
	}
	for name, input := range tests {
		input := input
		t.Run(name, func(t *testing.T) {
			_, err := secretdoc.ParseObject([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestParseDocument(t *testing.T) {
	doc, err := secretdoc.ParseDocument([]byte(`{"apiKey":"abc","db":{"user":"admin","password":"xyz"}}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"apiKey", "db"}, doc.Keys())

	api, ok := doc.Get("apiKey")
	require.True(t, ok)
	assert.False(t, api.IsObject())
	assert.Equal(t, "abc", api.String())

	db, ok := doc.Get("db")
	require.True(t, ok)
	require.True(t, db.IsObject())
	password, ok := db.Object().GetString("password")
	assert.True(t, ok)
	assert.Equal(t, "xyz", password)
	assert.Equal(t, `{"user":"admin","password":"xyz"}`, db.String())
}

func TestParseDocumentRejectsNumbers(t *testing.T) {
	_, err := secretdoc.ParseDocument([]byte(`{"apiKey":42}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must hold a string or an object")
}
