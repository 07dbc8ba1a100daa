package model

import "github.com/okian/zonetrust/pkg/geo"

// Texture is the dominant character of a zone.
type Texture string

// Zone textures.
const (
	TextureHistoric     Texture = "HISTORIC"
	TextureMarket       Texture = "MARKET"
	TextureNightlife    Texture = "NIGHTLIFE"
	TexturePark         Texture = "PARK"
	TextureWaterfront   Texture = "WATERFRONT"
	TextureCafeDistrict Texture = "CAFE_DISTRICT"
	TextureShopping     Texture = "SHOPPING"
	TextureCultural     Texture = "CULTURAL"
	TextureResidential  Texture = "RESIDENTIAL"
	TextureAdventure    Texture = "ADVENTURE"
)

// Textures lists every known texture.
var Textures = []Texture{
	TextureHistoric, TextureMarket, TextureNightlife, TexturePark, TextureWaterfront,
	TextureCafeDistrict, TextureShopping, TextureCultural, TextureResidential, TextureAdventure,
}

// Valid reports whether t is a known texture.
func (t Texture) Valid() bool {
	for _, known := range Textures {
		if t == known {
			return true
		}
	}
	return false
}

// IsActive reports textures suited to an energetic visit.
func (t Texture) IsActive() bool {
	switch t {
	case TextureMarket, TextureNightlife, TextureAdventure, TextureHistoric, TextureShopping:
		return true
	}
	return false
}

// IsRelaxed reports textures suited to a slow visit.
func (t Texture) IsRelaxed() bool {
	switch t {
	case TexturePark, TextureWaterfront, TextureCafeDistrict, TextureCultural, TextureResidential:
		return true
	}
	return false
}

// IsOutdoor reports textures whose experience is mostly outside.
func (t Texture) IsOutdoor() bool {
	switch t {
	case TexturePark, TextureWaterfront, TextureAdventure, TextureMarket, TextureHistoric:
		return true
	}
	return false
}

// IsIndoor reports textures that offer shelter from the weather.
func (t Texture) IsIndoor() bool {
	switch t {
	case TextureCultural, TextureShopping, TextureCafeDistrict:
		return true
	}
	return false
}

// Zone is a catalog entry produced by the geometry pipeline.
type Zone struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	PrimaryTexture    Texture   `json:"primary_texture"`
	SecondaryTextures []Texture `json:"secondary_textures,omitempty"`
	Center            geo.Point `json:"center"`
	Walkability       float64   `json:"walkability"` // 0-100
	Safety            float64   `json:"safety"`      // 0-100
}
