package cachetests

import "fmt"

// Namespace is the key space of one scenario instance. Two namespaces with different indexes
// never share a key.
type Namespace int

func (n Namespace) PrimaryKey() string   { return fmt.Sprintf("key1-%d", int(n)) }
func (n Namespace) PrimaryValue() string { return fmt.Sprintf("value1-%d", int(n)) }

// PairKey is the key of bulk pair x. The underscore separators keep "key_1_10" and
// "key_11_0" apart.
func (n Namespace) PairKey(x int) string   { return fmt.Sprintf("key_%d_%d", int(n), x) }
func (n Namespace) PairValue(x int) string { return fmt.Sprintf("value_%d_%d", int(n), x) }
