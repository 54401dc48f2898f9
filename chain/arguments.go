package chain

import "golang.org/x/xerrors"

// Argument is a named method argument.
type Argument struct {
	Name  string
	Value []byte
}

// Arguments is the list of arguments of a method call.
type Arguments []Argument

// Search returns the value of the first argument with the given name, or
// nil.
func (args Arguments) Search(name string) []byte {
	for _, arg := range args {
		if arg.Name == name {
			return arg.Value
		}
	}
	return nil
}

// Uint64 decodes the argument with the given name.
func (args Arguments) Uint64(name string) (uint64, error) {
	buf := args.Search(name)
	if buf == nil {
		return 0, xerrors.Errorf("%s: %w", name, ErrMissingArgument)
	}
	v, err := BytesUint64(buf)
	if err != nil {
		return 0, xerrors.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// Uint64Arg creates an argument holding v.
func Uint64Arg(name string, v uint64) Argument {
	return Argument{Name: name, Value: Uint64Bytes(v)}
}
