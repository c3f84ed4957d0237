package models

// Parameter is a single name/value pair fetched from a namespace
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Parameters is an ordered parameter map. Order is the order in which the
// parameters were retrieved and is preserved by every consumer.
type Parameters []Parameter

// Lookup returns the value for name and whether it was present
func (pp Parameters) Lookup(name string) (string, bool) {
	for _, p := range pp {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Get returns the value for name or the empty string
func (pp Parameters) Get(name string) string {
	v, _ := pp.Lookup(name)
	return v
}

// Set replaces the value of an existing parameter in place or appends a new one
func (pp Parameters) Set(name, value string) Parameters {
	for i := range pp {
		if pp[i].Name == name {
			pp[i].Value = value
			return pp
		}
	}
	return append(pp, Parameter{Name: name, Value: value})
}

// Names returns the parameter names in order
func (pp Parameters) Names() []string {
	names := make([]string, 0, len(pp))
	for _, p := range pp {
		names = append(names, p.Name)
	}
	return names
}

// Map returns the parameters as an unordered map
func (pp Parameters) Map() map[string]string {
	m := make(map[string]string, len(pp))
	for _, p := range pp {
		m[p.Name] = p.Value
	}
	return m
}

// TemplateParameter mirrors the CloudFormation parameter shape used in params.yml
type TemplateParameter struct {
	ParameterKey   string `json:"ParameterKey" yaml:"ParameterKey"`
	ParameterValue string `json:"ParameterValue" yaml:"ParameterValue"`
}
