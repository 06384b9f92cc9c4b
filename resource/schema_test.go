package resource_test

import (
	"errors"
	"reflect"
	"regexp"
	"testing"

	"github.com/jacentio/resourceful/engine/memory"
	"github.com/jacentio/resourceful/resource"
)

func TestValidate(t *testing.T) {
	def := resource.NewRegistry().MustDefine("Repository", memory.New(),
		resource.Property{Name: "name", Type: resource.String, Required: true, MinLength: 2, MaxLength: 20, Pattern: regexp.MustCompile(`^[a-z-]+$`)},
		resource.Property{Name: "stars", Type: resource.Number},
		resource.Property{Name: "private", Type: resource.Boolean},
		resource.Property{Name: "tags", Type: resource.Array},
		resource.Property{Name: "meta", Type: resource.Object},
		resource.Property{Name: "visibility", Type: resource.String, Enum: []any{"public", "internal"}},
		resource.Property{Name: "extra"},
	)

	tests := []struct {
		name   string
		doc    resource.Document
		fields []string
	}{
		{"valid", resource.Document{"name": "bullet", "stars": 3, "private": true, "tags": []string{"js"}, "meta": map[string]any{}, "visibility": "public", "extra": []int{1}}, nil},
		{"decoded arrays and numbers", resource.Document{"name": "bullet", "stars": 3.5, "tags": []any{"js"}}, nil},
		{"missing required", resource.Document{}, []string{"name"}},
		{"nil required", resource.Document{"name": nil}, []string{"name"}},
		{"too short", resource.Document{"name": "b"}, []string{"name"}},
		{"too long and bad pattern", resource.Document{"name": "ABCDEFGHIJKLMNOPQRSTUVWXYZ"}, []string{"name", "name"}},
		{"wrong types", resource.Document{"name": "bullet", "stars": "3", "private": "yes", "tags": "js", "meta": []string{}}, []string{"stars", "private", "tags", "meta"}},
		{"not in enum", resource.Document{"name": "bullet", "visibility": "secret"}, []string{"visibility"}},
		{"everything at once", resource.Document{"stars": true}, []string{"name", "stars"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := def.Validate(tt.doc)
			if tt.fields == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}

			var verr *resource.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Resource != "Repository" {
				t.Errorf("Resource = %q, want Repository", verr.Resource)
			}
			got := make([]string, 0, len(verr.Fields))
			for _, f := range verr.Fields {
				got = append(got, f.Field)
			}
			if !reflect.DeepEqual(got, tt.fields) {
				t.Errorf("fields = %v, want %v", got, tt.fields)
			}
			if !errors.Is(err, resource.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
			if kind := resource.KindOf(err); kind != resource.KindValidation {
				t.Errorf("KindOf = %s, want validation", kind)
			}
		})
	}
}

func TestValidate_UncomparableEnum(t *testing.T) {
	def := resource.NewRegistry().MustDefine("Repository", memory.New(),
		resource.Property{Name: "tags", Enum: []any{"a"}},
	)

	if err := def.Validate(resource.Document{"tags": []string{"a"}}); err == nil {
		t.Error("expected an uncomparable value to fail the enum check")
	}
}

func TestType_String(t *testing.T) {
	tests := map[resource.Type]string{
		resource.Any:     "any",
		resource.String:  "string",
		resource.Number:  "number",
		resource.Boolean: "boolean",
		resource.Array:   "array",
		resource.Object:  "object",
	}
	for typ, expected := range tests {
		if got := typ.String(); got != expected {
			t.Errorf("Type(%d).String() = %q, want %q", typ, got, expected)
		}
	}
}
