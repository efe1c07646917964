package shipping

// Floor values keep degenerate zero-size packages out of the carrier API.
// Centimeters and kilograms, matching the aggregator contract.
const (
	MinWidth  = 10.0
	MinLength = 15.0
	MinHeight = 2.0
	MinWeight = 0.1
)

type PackageItem struct {
	Width    float64
	Height   float64
	Length   float64
	Weight   float64
	Quantity uint
}

type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Length float64 `json:"length"`
	Weight float64 `json:"weight"`
}

// ComputePackageDimensions stacks the cart into a single package: widest and
// longest item bound the base, heights and weights accumulate per unit.
func ComputePackageDimensions(items []PackageItem) Dimensions {
	var d Dimensions
	for _, it := range items {
		qty := float64(it.Quantity)
		if it.Width > d.Width {
			d.Width = it.Width
		}
		if it.Length > d.Length {
			d.Length = it.Length
		}
		d.Height += it.Height * qty
		d.Weight += it.Weight * qty
	}

	if d.Width <= 0 {
		d.Width = MinWidth
	}
	if d.Length <= 0 {
		d.Length = MinLength
	}
	if d.Height <= 0 {
		d.Height = MinHeight
	}
	if d.Weight <= 0 {
		d.Weight = MinWeight
	}
	return d
}
