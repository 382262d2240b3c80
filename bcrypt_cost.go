//go:build !race

package custody

func passwordHashCost() int {
	return 14
}
