// Package composite merges single-channel rasters into a pseudo-colored
// multi-channel composite.
package composite

import (
	"fmt"
	"image/color"
	"sort"
	"strings"

	"microfigure/internal/models"
)

// ChannelPolicy assigns a lookup color and a display range to one composite
// channel position
type ChannelPolicy struct {
	Color string  `yaml:"color"`
	Low   float64 `yaml:"low"`
	High  float64 `yaml:"high"`
}

// DefaultPolicy is the two-channel merge: the first channel in red, the
// second in white, both displayed over [0, 255].
var DefaultPolicy = []ChannelPolicy{
	{Color: "red", Low: 0, High: 255},
	{Color: "white", Low: 0, High: 255},
}

var namedColors = map[string]color.RGBA{
	"red":     {R: 255, A: 255},
	"green":   {G: 255, A: 255},
	"blue":    {B: 255, A: 255},
	"cyan":    {G: 255, B: 255, A: 255},
	"magenta": {R: 255, B: 255, A: 255},
	"yellow":  {R: 255, G: 255, A: 255},
	"white":   {R: 255, G: 255, B: 255, A: 255},
	"gray":    {R: 255, G: 255, B: 255, A: 255},
	"grey":    {R: 255, G: 255, B: 255, A: 255},
}

// LookupColor resolves a color name used in policies
func LookupColor(name string) (color.RGBA, error) {
	c, ok := namedColors[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return color.RGBA{}, fmt.Errorf("unknown channel color %q (known: %s)", name, strings.Join(ColorNames(), ", "))
	}
	return c, nil
}

// ColorNames lists the accepted color names in sorted order
func ColorNames() []string {
	names := make([]string, 0, len(namedColors))
	for n := range namedColors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ValidatePolicy checks colors and ranges of every entry
func ValidatePolicy(policy []ChannelPolicy) error {
	if len(policy) == 0 {
		return fmt.Errorf("composite policy has no channels")
	}
	for i, p := range policy {
		if _, err := LookupColor(p.Color); err != nil {
			return fmt.Errorf("composite channel %d: %w", i+1, err)
		}
		if p.High <= p.Low {
			return fmt.Errorf("composite channel %d: display range [%g, %g] is empty", i+1, p.Low, p.High)
		}
	}
	return nil
}

// Channel is one colored layer of a composite
type Channel struct {
	Raster *models.Raster
	Color  color.RGBA
	Low    float64
	High   float64
	Active bool
}

// Composite is an ordered set of colored channels of equal size
type Composite struct {
	Width, Height int
	Channels      []Channel
}

// Assemble builds a composite from rasters, giving raster i the color and
// display range of policy[i]. Only the rasters that exist are assigned, so a
// single raster yields a one-channel composite. Every channel starts active.
func Assemble(rasters []*models.Raster, policy []ChannelPolicy) (*Composite, error) {
	if len(rasters) == 0 {
		return nil, fmt.Errorf("composite needs at least one channel")
	}
	if len(rasters) > len(policy) {
		return nil, fmt.Errorf("composite has %d channels but the color policy covers %d", len(rasters), len(policy))
	}

	width, height := rasters[0].Width, rasters[0].Height
	c := &Composite{Width: width, Height: height, Channels: make([]Channel, len(rasters))}
	for i, r := range rasters {
		if r.Width != width || r.Height != height {
			return nil, fmt.Errorf("composite channel %d is %dx%d, expected %dx%d", i+1, r.Width, r.Height, width, height)
		}
		lut, err := LookupColor(policy[i].Color)
		if err != nil {
			return nil, fmt.Errorf("composite channel %d: %w", i+1, err)
		}
		c.Channels[i] = Channel{
			Raster: r,
			Color:  lut,
			Low:    policy[i].Low,
			High:   policy[i].High,
			Active: true,
		}
	}
	return c, nil
}

// SetColor replaces the lookup color of channel index (one-based)
func (c *Composite) SetColor(index int, name string) error {
	ch, err := c.channel(index)
	if err != nil {
		return err
	}
	lut, err := LookupColor(name)
	if err != nil {
		return err
	}
	ch.Color = lut
	return nil
}

// SetDisplayRange replaces the display window of channel index (one-based)
func (c *Composite) SetDisplayRange(index int, low, high float64) error {
	ch, err := c.channel(index)
	if err != nil {
		return err
	}
	if high <= low {
		return fmt.Errorf("display range [%g, %g] is empty", low, high)
	}
	ch.Low, ch.High = low, high
	return nil
}

// SetActive toggles whether channel index (one-based) contributes to rendering
func (c *Composite) SetActive(index int, active bool) error {
	ch, err := c.channel(index)
	if err != nil {
		return err
	}
	ch.Active = active
	return nil
}

func (c *Composite) channel(index int) (*Channel, error) {
	if index < 1 || index > len(c.Channels) {
		return nil, fmt.Errorf("composite has no channel %d", index)
	}
	return &c.Channels[index-1], nil
}
