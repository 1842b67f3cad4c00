package stalls

import "fmt"

// ZoneLayout describes one row of the market floor.
type ZoneLayout struct {
	Zone  string
	Count int
	Size  StallSize
	Price float64
}

// DefaultLayout is the floor plan used by the seeder and by the
// database-less development mode.
var DefaultLayout = []ZoneLayout{
	{Zone: "A", Count: 12, Size: SizeSmall, Price: 1500},
	{Zone: "B", Count: 10, Size: SizeMedium, Price: 2500},
	{Zone: "C", Count: 8, Size: SizeMedium, Price: 2800},
	{Zone: "D", Count: 6, Size: SizeLarge, Price: 4000},
}

// BuildLayout expands zone rows into stalls coded A01, A02, ...
func BuildLayout(zones []ZoneLayout) []Stall {
	var out []Stall
	for _, z := range zones {
		for i := 1; i <= z.Count; i++ {
			out = append(out, Stall{
				Code:        fmt.Sprintf("%s%02d", z.Zone, i),
				Zone:        z.Zone,
				Size:        z.Size,
				PricePerDay: z.Price,
				Status:      StallActive,
			})
		}
	}
	return out
}
