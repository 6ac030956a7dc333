package core

// GenerateTemplate returns the header layout and one sample row for profile.
// Headers are the schema's required fields followed by its optional fields.
func GenerateTemplate(profile EntityImportProfile) Template {
	schema := profile.Schema()
	sample := make(map[string]string, len(schema.fields))
	for _, f := range schema.fields {
		sample[f.Name] = f.Example
	}
	return Template{
		Kind:    profile.Kind(),
		Headers: schema.Headers(),
		Sample:  sample,
	}
}

// SampleRow returns the template sample ordered like Headers.
func (t Template) SampleRow() []string {
	row := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		row[i] = t.Sample[h]
	}
	return row
}
