package mongostore

import (
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCollectionName(t *testing.T) {
	if got := CollectionName("companies/c1/employees"); got != "companies.c1.employees" {
		t.Errorf("CollectionName() = %q, want %q", got, "companies.c1.employees")
	}
}

func TestToDocument_Normalizes(t *testing.T) {
	when := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	raw := bson.M{
		"_id":          "e1",
		"employeeCode": "E001",
		"closingDay":   int32(20),
		"hiredAt":      primitive.NewDateTimeFromTime(when),
		"address":      bson.D{{Key: "city", Value: "大阪市"}},
		"skills":       bson.A{"足場", bson.M{"level": int64(2)}},
	}

	doc := toDocument(raw)

	if doc.ID != "e1" {
		t.Errorf("ID = %q, want %q", doc.ID, "e1")
	}
	if _, ok := doc.Fields["_id"]; ok {
		t.Error("Fields should not contain _id")
	}
	want := map[string]any{
		"employeeCode": "E001",
		"closingDay":   20,
		"hiredAt":      when,
		"address":      map[string]any{"city": "大阪市"},
		"skills":       []any{"足場", map[string]any{"level": 2}},
	}
	if !reflect.DeepEqual(doc.Fields, want) {
		t.Errorf("Fields = %#v, want %#v", doc.Fields, want)
	}
}
