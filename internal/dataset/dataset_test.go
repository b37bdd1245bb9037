package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOrderAndSet(t *testing.T) {
	r := NewRecord("id", int64(1), "name", "Adobe", "status", "Active")
	r.Set("name", "Adobe Inc.")
	r.Set("notes", nil)

	assert.Equal(t, []string{"id", "name", "status", "notes"}, r.Keys())
	assert.Equal(t, "Adobe Inc.", r.String("name"))
	assert.True(t, r.Has("notes"))
	assert.False(t, r.Has("missing"))

	r.Delete("name")
	assert.Equal(t, []string{"id", "status", "notes"}, r.Keys())
	assert.Equal(t, "Active", r.String("status"))
}

func TestRecordAccessors(t *testing.T) {
	r := NewRecord("amount", 13644684.7, "count", int64(3), "whole", 1000000.0, "text", " 42 ", "flag", true)
	assert.Equal(t, 13644684.7, r.Float("amount"))
	assert.Equal(t, 3.0, r.Float("count"))
	assert.Equal(t, "1000000", r.String("whole"))
	assert.Equal(t, 42.0, r.Float("text"))
	assert.Equal(t, "true", r.String("flag"))
	assert.Equal(t, "", r.String("absent"))
	assert.Zero(t, r.Float("absent"))
}

func TestCloneIsDeep(t *testing.T) {
	inner := NewRecord("po", "on hold")
	r := NewRecord("details", inner, "tags", []interface{}{"a"})
	c := r.Clone()
	inner.Set("po", "cleared")

	v, _ := c.Get("details")
	assert.Equal(t, "on hold", v.(*Record).String("po"))
}

func TestDocumentPut(t *testing.T) {
	doc := &Document{}
	doc.Put(NewRecordSet("publishers"))
	doc.Put(NewRecordSet("spendData"))
	doc.Put(NewRecordSet("publishers", NewRecord("name", "Figma")))

	assert.Equal(t, []string{"publishers", "spendData"}, doc.Names())
	assert.Equal(t, 1, doc.Set("publishers").Len())
	assert.Nil(t, doc.Set("riskData"))
	assert.Equal(t, 0, doc.Set("riskData").Len())
}

func TestMergeCollapsesAndRenumbers(t *testing.T) {
	existing := NewRecordSet("publishers",
		NewRecord("id", int64(7), "name", "Adobe", "status", "Active"),
		NewRecord("id", int64(9), "name", "Docker", "status", "Active"),
	)
	incoming := NewRecordSet("publishers",
		NewRecord("id", int64(1), "name", "Figma", "status", "Pending"),
		NewRecord("id", int64(2), "name", "Adobe", "status", "In Review"),
	)

	merged := Merge(existing, incoming, FieldKey("name"))
	Renumber(merged, "id")

	require.Equal(t, 3, merged.Len())
	assert.Equal(t, "Adobe", merged.Records[0].String("name"))
	assert.Equal(t, "In Review", merged.Records[0].String("status"))
	assert.Equal(t, "Docker", merged.Records[1].String("name"))
	assert.Equal(t, "Figma", merged.Records[2].String("name"))
	for i, r := range merged.Records {
		assert.Equal(t, float64(i+1), r.Float("id"))
	}
}

func TestMergeDuplicateKeysInOneInput(t *testing.T) {
	incoming := NewRecordSet("spendData",
		NewRecord("publisher", "Adobe", "companySpend", 1.0),
		NewRecord("publisher", "Adobe", "companySpend", 2.0),
	)
	merged := Merge(nil, incoming, FieldKey("publisher"))
	require.Equal(t, 1, merged.Len())
	assert.Equal(t, 2.0, merged.Records[0].Float("companySpend"))
	assert.Equal(t, "spendData", merged.Name)
}

func TestFieldKeyComposite(t *testing.T) {
	key := FieldKey("title", "publisher")
	a := NewRecord("title", "Snagit", "publisher", "TechSmith")
	b := NewRecord("title", "Snagit", "publisher", "Other")
	assert.NotEqual(t, key(a), key(b))
}
