package grid

import (
	"bufio"
	"fmt"
	"image"
	_ "image/png" // loaded maps may be PNG rasters
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MapPathEnvVar is consulted when no map path is given on the command line.
const MapPathEnvVar = "TEST_MAP"

// Default classification thresholds, matching the map server conventions the
// planners under test are normally run with.
const (
	defaultOccupiedThresh = 0.65
	defaultFreeThresh     = 0.196
)

type mapMetadata struct {
	Image          string   `yaml:"image"`
	Resolution     *float64 `yaml:"resolution"`
	Negate         int      `yaml:"negate"`
	OccupiedThresh *float64 `yaml:"occupied_thresh"`
	FreeThresh     *float64 `yaml:"free_thresh"`
	Mode           string   `yaml:"mode"`
}

// ResolveMapPath returns the map metadata path from the explicit flag value,
// falling back to the TEST_MAP environment variable. An empty result is a
// ConfigurationError: a loaded map was requested but no resource was supplied.
func ResolveMapPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv(MapPathEnvVar); env != "" {
		return env, nil
	}
	return "", ConfigurationError{Message: fmt.Sprintf(
		"path to map file was not specified with -map or the %s environment variable", MapPathEnvVar)}
}

// LoadFromFile reads a map metadata YAML file and the raster image it names,
// and classifies the pixels into a trinary costmap. The image path in the
// metadata is interpreted relative to the metadata file.
func LoadFromFile(metadataPath string) (*Costmap, error) {
	raw, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, ConfigurationError{Message: fmt.Sprintf("cannot read map metadata: %s", err)}
	}
	var meta mapMetadata
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("malformed map metadata %s: %w", metadataPath, err)
	}
	if meta.Image == "" {
		return nil, fmt.Errorf("map metadata %s does not name an image", metadataPath)
	}
	if meta.Mode != "" && meta.Mode != "trinary" {
		return nil, ConfigurationError{Message: fmt.Sprintf("unsupported map mode %q", meta.Mode)}
	}

	imagePath := meta.Image
	if !filepath.IsAbs(imagePath) {
		imagePath = filepath.Join(filepath.Dir(metadataPath), imagePath)
	}

	gray, w, h, err := loadRaster(imagePath)
	if err != nil {
		return nil, ConfigurationError{Message: fmt.Sprintf("failed to load map image %s: %s", imagePath, err)}
	}

	resolution := 1.0
	if meta.Resolution != nil {
		resolution = *meta.Resolution
	}
	occThresh := defaultOccupiedThresh
	if meta.OccupiedThresh != nil {
		occThresh = *meta.OccupiedThresh
	}
	freeThresh := defaultFreeThresh
	if meta.FreeThresh != nil {
		freeThresh = *meta.FreeThresh
	}

	data := make([]int8, w*h)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			// Image row 0 is the top of the picture; grid row 0 is y=0 at the
			// bottom, so rows are flipped.
			shade := float64(gray[row*w+col]) / 255.0
			occ := 1.0 - shade
			if meta.Negate != 0 {
				occ = shade
			}
			var value int8
			switch {
			case occ > occThresh:
				value = CostLethal
			case occ < freeThresh:
				value = CostFree
			default:
				value = CostUnknown
			}
			data[(h-1-row)*w+col] = value
		}
	}

	props := Properties{SizeX: w, SizeY: h, Resolution: resolution}
	return newCostmap(props, data, SourceLoaded)
}

func loadRaster(path string) ([]uint8, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close() //nolint:errcheck

	if strings.EqualFold(filepath.Ext(path), ".pgm") {
		return decodePGM(f)
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, 0, 0, err
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	gray := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			gray[y*w+x] = uint8(((r + g + b) / 3) >> 8)
		}
	}
	return gray, w, h, nil
}

// decodePGM reads binary (P5) and ASCII (P2) portable graymaps. There is no
// PGM support in the standard image codecs and the format is a short header
// plus a raster, so it is parsed here directly.
func decodePGM(f *os.File) ([]uint8, int, int, error) {
	br := bufio.NewReader(f)

	magic, err := nextPGMToken(br)
	if err != nil {
		return nil, 0, 0, err
	}
	if magic != "P5" && magic != "P2" {
		return nil, 0, 0, fmt.Errorf("unsupported PGM magic %q", magic)
	}

	var w, h, maxval int
	for _, dst := range []*int{&w, &h, &maxval} {
		tok, err := nextPGMToken(br)
		if err != nil {
			return nil, 0, 0, err
		}
		if _, err := fmt.Sscanf(tok, "%d", dst); err != nil {
			return nil, 0, 0, fmt.Errorf("malformed PGM header token %q", tok)
		}
	}
	if w <= 0 || h <= 0 || maxval <= 0 || maxval > 255 {
		return nil, 0, 0, fmt.Errorf("unsupported PGM dimensions %dx%d maxval %d", w, h, maxval)
	}

	gray := make([]uint8, w*h)
	if magic == "P5" {
		if _, err := io.ReadFull(br, gray); err != nil {
			return nil, 0, 0, err
		}
	} else {
		for i := range gray {
			tok, err := nextPGMToken(br)
			if err != nil {
				return nil, 0, 0, err
			}
			var v int
			if _, err := fmt.Sscanf(tok, "%d", &v); err != nil {
				return nil, 0, 0, fmt.Errorf("malformed PGM sample %q", tok)
			}
			gray[i] = uint8(v)
		}
	}
	if maxval != 255 {
		for i, v := range gray {
			gray[i] = uint8(int(v) * 255 / maxval)
		}
	}
	return gray, w, h, nil
}

// nextPGMToken returns the next whitespace-delimited token, skipping comment
// lines introduced by '#'.
func nextPGMToken(br *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		b, err := br.ReadByte()
		if err != nil {
			if sb.Len() > 0 {
				return sb.String(), nil
			}
			return "", err
		}
		switch {
		case b == '#':
			if _, err := br.ReadString('\n'); err != nil {
				return "", err
			}
		case b == ' ' || b == '\t' || b == '\r' || b == '\n':
			if sb.Len() > 0 {
				return sb.String(), nil
			}
		default:
			sb.WriteByte(b)
		}
	}
}
