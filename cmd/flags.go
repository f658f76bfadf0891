package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kiesman99/imslice/pkg/tile"
)

// addGridFlags registers the three ways of describing a grid. Exactly one
// of them must be given.
func addGridFlags(cmd *cobra.Command) {
	cmd.Flags().IntSliceP("grid", "g", nil, "columns and rows, e.g. 2,3 or 2 3 or --grid 2 --grid 3")
	cmd.Flags().IntP("number-of-tiles", "n", 0, "total number of tiles, laid out as close to square as possible")
	cmd.Flags().IntSliceP("tile-size", "t", nil, "tile width and height in pixels, e.g. 256,256 or 256 256")

	cmd.MarkFlagsMutuallyExclusive("grid", "number-of-tiles", "tile-size")
	cmd.MarkFlagsOneRequired("grid", "number-of-tiles", "tile-size")
}

// pairArgs is cobra.ExactArgs(n), except that it leaves room for the
// second value of --grid 2 3 or --tile-size 256 256, which the flag parser
// hands over as a positional argument.
func pairArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == n+1 && (singleValue(cmd, "grid") || singleValue(cmd, "tile-size")) {
			return nil
		}
		return cobra.ExactArgs(n)(cmd, args)
	}
}

func singleValue(cmd *cobra.Command, flag string) bool {
	v, err := cmd.Flags().GetIntSlice(flag)
	return err == nil && cmd.Flags().Changed(flag) && len(v) == 1
}

// gridSpecFromFlags turns the grid flags into a GridSpec and returns the n
// positional arguments left once a space separated second value has been
// taken out of args. Shape errors are reported here so nothing is read or
// written for a malformed command line.
func gridSpecFromFlags(cmd *cobra.Command, args []string, n int) (tile.GridSpec, []string, error) {
	flags := cmd.Flags()

	switch {
	case flags.Changed("grid"):
		v, rest, err := pairValues(cmd, "grid", args, n)
		if err != nil {
			return tile.GridSpec{}, nil, err
		}
		columns, rows, err := pair("grid", "COLUMNS,ROWS", v)
		if err != nil {
			return tile.GridSpec{}, nil, err
		}
		return tile.ByGrid(columns, rows), rest, nil

	case flags.Changed("number-of-tiles"):
		count, err := flags.GetInt("number-of-tiles")
		if err != nil {
			return tile.GridSpec{}, nil, err
		}
		return tile.ByCount(count), args, nil

	case flags.Changed("tile-size"):
		v, rest, err := pairValues(cmd, "tile-size", args, n)
		if err != nil {
			return tile.GridSpec{}, nil, err
		}
		width, height, err := pair("tile-size", "WIDTH,HEIGHT", v)
		if err != nil {
			return tile.GridSpec{}, nil, err
		}
		return tile.ByTileSize(width, height), rest, nil
	}

	return tile.GridSpec{}, nil, fmt.Errorf("%w: one of --grid, --number-of-tiles or --tile-size is required", tile.ErrInvalidSpecification)
}

// pairValues reads a two-valued flag. When it holds one value and args has
// one argument too many, the only integer argument is the second value.
func pairValues(cmd *cobra.Command, flag string, args []string, n int) ([]int, []string, error) {
	v, err := cmd.Flags().GetIntSlice(flag)
	if err != nil {
		return nil, nil, err
	}
	if len(v) != 1 || len(args) != n+1 {
		return v, args, nil
	}

	idx := -1
	for i, arg := range args {
		if _, err := strconv.Atoi(arg); err != nil {
			continue
		}
		if idx >= 0 {
			idx = -1
			break
		}
		idx = i
	}
	if idx < 0 {
		return nil, nil, fmt.Errorf("%w: cannot tell which argument is the second --%s value, write it as --%s A,B",
			tile.ErrInvalidSpecification, flag, flag)
	}

	second, _ := strconv.Atoi(args[idx])
	rest := make([]string, 0, n)
	rest = append(rest, args[:idx]...)
	rest = append(rest, args[idx+1:]...)
	return []int{v[0], second}, rest, nil
}

func pair(flag, shape string, v []int) (int, int, error) {
	if len(v) != 2 {
		return 0, 0, fmt.Errorf("%w: --%s takes %s, got %d value(s)", tile.ErrInvalidSpecification, flag, shape, len(v))
	}
	if v[0] <= 0 || v[1] <= 0 {
		return 0, 0, fmt.Errorf("%w: --%s values must be positive, got %d,%d", tile.ErrInvalidSpecification, flag, v[0], v[1])
	}
	return v[0], v[1], nil
}
