package dsl

// FieldSpec declares which node kinds are legal for a query field. The
// capability set gates operators at validation time: a proximity pair on a
// field without the Proximity capability parses fine but is reported as a
// semantic error.
type FieldSpec struct {
	Name      string
	Proximity bool
}

var fieldSpecs = map[string]FieldSpec{
	"heading":          {Name: "heading"},
	"article":          {Name: "article"},
	"clause":           {Name: "clause", Proximity: true},
	"section":          {Name: "section"},
	"defined_term":     {Name: "defined_term"},
	"template":         {Name: "template"},
	"vintage":          {Name: "vintage"},
	"market":           {Name: "market"},
	"doc_type":         {Name: "doc_type"},
	"admin_agent":      {Name: "admin_agent"},
	"facility_size_mm": {Name: "facility_size_mm"},
}

// KnownField reports whether name is a recognized query field.
func KnownField(name string) bool {
	_, ok := fieldSpecs[name]
	return ok
}

// FieldAllowsProximity reports whether the field's capability set includes
// the proximity operator. Unknown fields allow nothing.
func FieldAllowsProximity(name string) bool {
	return fieldSpecs[name].Proximity
}

// Fields returns the recognized field names. The slice is a copy.
func Fields() []string {
	out := make([]string, 0, len(fieldSpecs))
	for name := range fieldSpecs {
		out = append(out, name)
	}
	return out
}
