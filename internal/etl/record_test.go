package etl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecord_SetKeepsSourceOrder(t *testing.T) {
	rec := NewRecord("orders")
	rec.Set("id", "1")
	rec.Set("amount", "9.50")
	rec.Set("currency", "EUR")
	rec.Set("amount", "10.00")

	assert.Equal(t, []string{"id", "amount", "currency"}, rec.FieldNames())
	assert.Equal(t, "10.00", rec.Data["amount"])
	assert.Equal(t, []KV{{"id", "1"}, {"amount", "10.00"}, {"currency", "EUR"}}, rec.Document())
}

func TestRecord_FieldNamesFallsBackToSorted(t *testing.T) {
	rec := Record{Group: "g", Data: map[string]string{"b": "2", "a": "1"}}
	assert.Equal(t, []string{"a", "b"}, rec.FieldNames())
}

func TestInferSchema_AllFieldsText(t *testing.T) {
	rec := NewRecord("orders")
	rec.Set("id", "1")
	rec.Set("amount", "12")

	schema := InferSchema(rec)

	assert.Equal(t, []string{"id", "amount"}, schema.FieldNames())
	for _, f := range schema.Fields {
		assert.Equal(t, FieldTypeText, f.Type)
	}
}

func TestInferSchema_EmptyRecord(t *testing.T) {
	schema := InferSchema(NewRecord("empty"))
	assert.Empty(t, schema.Fields)
}

func TestInferSchema_FirstRecordOnly(t *testing.T) {
	first := NewRecord("t")
	first.Set("a", "1")
	first.Set("b", "2")
	second := NewRecord("t")
	second.Set("a", "3")
	second.Set("c", "4")

	grp := GroupRecords([]Record{first, second}).Get("t")
	rep, ok := grp.First()
	assert.True(t, ok)

	schema := InferSchema(rep)
	assert.Equal(t, []string{"a", "b"}, schema.FieldNames())
	assert.False(t, schema.Has("c"))
}
