package dao

// Parameter narrows List results.
type Parameter struct {
	Name  string
	Value interface{}
}

// NewParameter creates a string parameter; several values match any of them.
func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}

// NewIntParameter creates an integer parameter.
func NewIntParameter(name string, value int) *Parameter {
	return &Parameter{Name: name, Value: value}
}
