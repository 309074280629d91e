package decoration

import (
	"math"
	"math/rand"

	"voxelgen/internal/world"
)

// Pine places a trunk wrapped in conic needle layers. Each layer's radius is
// jittered by at most one block.
func Pine(b Builder, x, y, z int, rng *rand.Rand) {
	height := 7 + rng.Intn(4) // 7-10
	for dy := 0; dy < height; dy++ {
		b.Apply(x, y+dy, z, world.BlockLog)
	}

	foliageBase := y + 2 + rng.Intn(2)
	top := y + height
	layers := top - foliageBase
	for i := 0; i <= layers; i++ {
		ly := top - i
		// Layers widen towards the base and alternate between a full ring
		// and a narrower collar.
		radius := 1 + i*3/max(layers, 1)
		if i%2 == 1 {
			radius--
		}
		radius += rng.Intn(3) - 1
		radius = max(radius, 0)
		disc(b, x, ly, z, radius, world.BlockPineNeedles, func(dx, dz int) bool {
			return dx == 0 && dz == 0 && ly < top
		})
	}
	b.Apply(x, top, z, world.BlockPineNeedles)
	b.Apply(x, top+1, z, world.BlockPineNeedles)
}

// Broadleaf places a trunk with branches wound in a spiral and a rounded
// canopy. Lower canopy layers are thinned more aggressively.
func Broadleaf(b Builder, x, y, z int, rng *rand.Rand) {
	trunk := 4 + rng.Intn(3) // 4-6
	for dy := 0; dy < trunk; dy++ {
		b.Apply(x, y+dy, z, world.BlockLog)
	}

	branches := 2 + rng.Intn(3)
	angle := rng.Float64() * 2 * math.Pi
	for i := 0; i < branches; i++ {
		angle += 2.39996 + (rng.Float64()-0.5)*0.4
		by := y + trunk - 2 + i%2
		length := 2 + rng.Intn(2)
		var ex, ez int
		for s := 1; s <= length; s++ {
			ex = x + int(math.Round(math.Cos(angle)*float64(s)))
			ez = z + int(math.Round(math.Sin(angle)*float64(s)))
			b.Apply(ex, by+s/2, ez, world.BlockLog)
		}
		blob(b, ex, by+length/2+1, ez, 1, world.BlockLeaves, rng, 0.2)
	}

	thinning := []float64{0.5, 0.3, 0.15, 0}
	canopyBase := y + trunk - 1
	for i, p := range thinning {
		radius := 2
		if i >= 2 {
			radius = 1
		}
		ly := canopyBase + i
		for dz := -radius; dz <= radius; dz++ {
			for dx := -radius; dx <= radius; dx++ {
				if dx == 0 && dz == 0 && ly < y+trunk {
					continue
				}
				edge := abs(dx) == radius || abs(dz) == radius
				if edge && rng.Float64() < p {
					continue
				}
				b.Apply(x+dx, ly, z+dz, world.BlockLeaves)
			}
		}
	}
}

// GrassTuft places a single tall grass block.
func GrassTuft(b Builder, x, y, z int, _ *rand.Rand) {
	b.Apply(x, y, z, world.BlockTallGrass)
}

// Flower places a single flower.
func Flower(b Builder, x, y, z int, _ *rand.Rand) {
	b.Apply(x, y, z, world.BlockFlower)
}

// DeadBush places a one or two block dry stump.
func DeadBush(b Builder, x, y, z int, rng *rand.Rand) {
	b.Apply(x, y, z, world.BlockLog)
	if rng.Intn(2) == 0 {
		b.Apply(x, y+1, z, world.BlockLog)
	}
}

// Boulder places a half buried lump of radius one or two.
func Boulder(b Builder, x, y, z int, rng *rand.Rand) {
	blob(b, x, y-1, z, 1+rng.Intn(2), world.BlockBoulder, rng, 0.1)
}

// RockSpire places a tapering column of stone.
func RockSpire(b Builder, x, y, z int, rng *rand.Rand) {
	height := 4 + rng.Intn(5)
	for dy := 0; dy < height; dy++ {
		radius := 1
		if dy > height/2 {
			radius = 0
		}
		disc(b, x, y+dy, z, radius, world.BlockStone, nil)
	}
}

// CrystalSpire places a crystal column with a few diagonal shards.
func CrystalSpire(b Builder, x, y, z int, rng *rand.Rand) {
	height := 3 + rng.Intn(5)
	for dy := 0; dy < height; dy++ {
		b.Apply(x, y+dy, z, world.BlockAlienCrystal)
	}
	shards := rng.Intn(4)
	for i := 0; i < shards; i++ {
		dx, dz := rng.Intn(3)-1, rng.Intn(3)-1
		sy := y + rng.Intn(max(height-1, 1))
		b.Apply(x+dx, sy, z+dz, world.BlockAlienCrystal)
		b.Apply(x+2*dx, sy+1, z+2*dz, world.BlockAlienCrystal)
	}
}

// disc fills a horizontal circle. skip may exclude cells.
func disc(b Builder, x, y, z, radius int, id world.BlockID, skip func(dx, dz int) bool) {
	r2 := radius*radius + radius
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dz*dz > r2 {
				continue
			}
			if skip != nil && skip(dx, dz) {
				continue
			}
			b.Apply(x+dx, y, z+dz, id)
		}
	}
}

// blob fills a sphere, dropping surface cells with probability rough.
func blob(b Builder, x, y, z, radius int, id world.BlockID, rng *rand.Rand, rough float64) {
	r2 := radius*radius + radius
	for dy := -radius; dy <= radius; dy++ {
		for dz := -radius; dz <= radius; dz++ {
			for dx := -radius; dx <= radius; dx++ {
				d := dx*dx + dy*dy + dz*dz
				if d > r2 {
					continue
				}
				if d >= radius*radius && rng.Float64() < rough {
					continue
				}
				b.Apply(x+dx, y+dy, z+dz, id)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
