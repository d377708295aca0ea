package volume

import (
	"microfigure/internal/models"
)

// Split separates v into one stack per channel, in channel order. Planes
// share no memory with v.
func Split(v *models.Volume) ([]*models.ChannelStack, error) {
	if v.Channels == 0 {
		return nil, &models.IntegrityError{What: "channel split", Have: 0, Need: 1}
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}

	stacks := make([]*models.ChannelStack, v.Channels)
	for c := 0; c < v.Channels; c++ {
		stack := &models.ChannelStack{
			Channel: c,
			Planes:  make([]*models.Raster, v.Slices),
		}
		for z := 0; z < v.Slices; z++ {
			plane := models.NewRaster(v.Width, v.Height)
			copy(plane.Pix, v.Plane(c, z))
			stack.Planes[z] = plane
		}
		stacks[c] = stack
	}
	return stacks, nil
}
