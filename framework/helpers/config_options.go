package helpers

// ConfigOption is an interface for use with the vararg options pattern and ApplyOptions.
type ConfigOption[T any] interface {
	// Configure makes whatever configuration change the option represents.
	Configure(*T) error
}

// OptionFunc adapts a plain function to ConfigOption.
type OptionFunc[T any] func(*T) error

func (f OptionFunc[T]) Configure(target *T) error { return f(target) }

// ApplyOptions calls any number of ConfigOption implementations against the target value.
// It stops at the first error.
func ApplyOptions[T any, U ConfigOption[T]](target *T, options ...U) error {
	// The U type parameter lets callers pass a slice of their own named option type.
	for _, o := range options {
		if err := o.Configure(target); err != nil {
			return err
		}
	}
	return nil
}
