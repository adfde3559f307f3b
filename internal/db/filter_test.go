package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestFilterBuilder(t *testing.T) {
	filter := NewFilter().
		Eq("status", "PENDING").
		Ne("sender_id", int64(7)).
		Contains("username", "ali").
		Build()

	assert.Equal(t, "PENDING", filter["status"])
	assert.Equal(t, bson.M{"$ne": int64(7)}, filter["sender_id"])
	assert.Equal(t, bson.M{"$regex": "ali", "$options": "i"}, filter["username"])
}

func TestFilterBuilderIn(t *testing.T) {
	filter := NewFilter().In("status", []string{"PENDING", "ACCEPTED"}).Build()
	assert.Equal(t, bson.M{"$in": []string{"PENDING", "ACCEPTED"}}, filter["status"])
}

func TestPairMatchesEitherOrder(t *testing.T) {
	filter := Pair("sender_id", "receiver_id", 7, 42)

	or, ok := filter["$or"].([]bson.M)
	assert.True(t, ok)
	assert.Len(t, or, 2)
	assert.Contains(t, or, bson.M{"sender_id": int64(7), "receiver_id": int64(42)})
	assert.Contains(t, or, bson.M{"sender_id": int64(42), "receiver_id": int64(7)})
}
