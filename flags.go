package pe

type flagName struct {
	bit  uint32
	name string
}

// Names of all the known bits set in value, in table order. Never
// nil so an empty set marshals as [].
func flagNames(value uint32, table []flagName) []string {
	result := []string{}
	for _, flag := range table {
		if value&flag.bit != 0 {
			result = append(result, flag.name)
		}
	}
	return result
}

// The bits of value that have no name in the table.
func unknownBits(value uint32, table []flagName) uint32 {
	for _, flag := range table {
		value &^= flag.bit
	}
	return value
}
