package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymize(t *testing.T) {
	text := "John Smith, john@x.io, 555-123-4567"
	entities := []Entity{
		{Type: "PERSON", Start: 0, End: 10},
		{Type: "EMAIL_ADDRESS", Start: 12, End: 21},
		{Type: "PHONE_NUMBER", Start: 23, End: 35},
	}

	t.Run("generic", func(t *testing.T) {
		ops := DefaultPolicy().Operators(ModeGeneric, entities)
		assert.Equal(t, "<PERSON>, <EMAIL_ADDRESS>, <PHONE_NUMBER>", Anonymize(text, entities, ops))
	})

	t.Run("partial operators", func(t *testing.T) {
		got := Anonymize(text, entities, Operators{"EMAIL_ADDRESS": "example@gmail.com"})
		assert.Equal(t, "John Smith, example@gmail.com, 555-123-4567", got)
	})

	t.Run("no entities", func(t *testing.T) {
		assert.Equal(t, text, Anonymize(text, nil, Operators{"PERSON": "ABC"}))
	})

	t.Run("overlap skipped", func(t *testing.T) {
		got := Anonymize(text, []Entity{
			{Type: "PERSON", Start: 0, End: 10},
			{Type: "PERSON", Start: 5, End: 10},
		}, Operators{"PERSON": "ABC"})
		assert.Equal(t, "ABC, john@x.io, 555-123-4567", got)
	})
}
