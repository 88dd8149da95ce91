// Package decode turns free-form model output into records that match a
// Descriptor. Extraction tolerates code fences, surrounding prose and stray
// backslashes; normalization resolves renamed and nested fields. Failures are
// returned as *Failure and never masked: fallback policy belongs to the caller.
package decode

// Decode extracts a JSON value from text and normalizes it against d.
// Failures from either stage are returned untouched.
func Decode(text string, d *Descriptor) (Record, error) {
	doc, err := Extract(text)
	if err != nil {
		return nil, err
	}
	return Normalize(doc, d)
}

// Text returns the string field name, or "" when absent or of another shape.
func (r Record) Text(name string) string {
	s, _ := r[name].(string)
	return s
}

func (r Record) Int(name string) int {
	n, _ := r[name].(int)
	return n
}

func (r Record) Strings(name string) []string {
	s, _ := r[name].([]string)
	return s
}

func (r Record) Map(name string) map[string]string {
	m, _ := r[name].(map[string]string)
	return m
}

func (r Record) Object(name string) Record {
	o, _ := r[name].(Record)
	return o
}

func (r Record) Objects(name string) []Record {
	o, _ := r[name].([]Record)
	return o
}
