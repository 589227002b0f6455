package processing

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/autorig/pkg/types"
)

const (
	// DefaultMaxDim is the longest side sent to a detector
	DefaultMaxDim = 1536
	// DefaultQuality is the JPEG quality used for transport
	DefaultQuality = 85
	// MaxDownloadBytes caps images fetched by URL
	MaxDownloadBytes = 50 << 20
)

// Processor handles image processing operations
type Processor struct {
	maxDim     int
	quality    int
	httpClient *http.Client
}

// Option configures a Processor
type Option func(*Processor)

// WithMaxDim sets the longest side of transport images. Zero disables resizing.
func WithMaxDim(n int) Option {
	return func(p *Processor) {
		if n >= 0 {
			p.maxDim = n
		}
	}
}

// WithQuality sets the transport JPEG quality
func WithQuality(q int) Option {
	return func(p *Processor) {
		if q > 0 && q <= 100 {
			p.quality = q
		}
	}
}

// WithHTTPClient replaces the client used for URL downloads
func WithHTTPClient(c *http.Client) Option {
	return func(p *Processor) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// NewProcessor creates a new image processor
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		maxDim:     DefaultMaxDim,
		quality:    DefaultQuality,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load reads an image from a file path or an http(s) URL and returns its
// raw bytes along with a filename usable for name hints
func (p *Processor) Load(source string) ([]byte, string, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.download(source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	return data, filepath.Base(source), nil
}

func (p *Processor) download(imageURL string) ([]byte, string, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}

	req, err := http.NewRequest(http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "AutoRig/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > MaxDownloadBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", MaxDownloadBytes)
	}

	name := path.Base(parsedURL.Path)
	if name == "." || name == "/" {
		name = ""
	}
	return data, name, nil
}

// Decode decodes image bytes, falling back to the cgo WebP decoder for
// variants the pure Go decoder rejects
func (p *Processor) Decode(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// PrepareForTransport downsizes an upload to the configured longest side and
// re-encodes it as JPEG. Bytes that cannot be decoded are returned unchanged,
// and the second result reports whether the image was re-encoded.
func (p *Processor) PrepareForTransport(data []byte) ([]byte, bool) {
	img, err := p.Decode(data)
	if err != nil {
		return data, false
	}
	img = p.fit(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return data, false
	}
	return buf.Bytes(), true
}

func (p *Processor) fit(img image.Image) image.Image {
	if p.maxDim <= 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= p.maxDim && h <= p.maxDim {
		return img
	}
	if w >= h {
		return imaging.Resize(img, p.maxDim, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, p.maxDim, imaging.Lanczos)
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, file, format string, quality int) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(file)
		if err != nil {
			return err
		}
		defer f.Close()
		return webp.Encode(f, img, &webp.Options{Quality: float32(quality)})
	case "png":
		return imaging.Save(img, file)
	default: // jpg/jpeg
		return imaging.Save(img, file, imaging.JPEGQuality(quality))
	}
}

var (
	rootColor   = color.NRGBA{255, 0, 0, 255}
	boneColor   = color.NRGBA{0, 255, 0, 255}
	animalColor = color.NRGBA{255, 204, 0, 255}
	jointColor  = color.NRGBA{0, 170, 255, 255}
)

// RenderRigOverlay draws the rig's rest pose over the image. Bone space is
// fitted into the image with a margin, y up.
func (p *Processor) RenderRigOverlay(img image.Image, model types.RiggedModel) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()
	if len(model.Bones) == 0 || w == 0 || h == 0 {
		return nrgba
	}

	toPixel := fitBones(model.Bones, w, h)
	positions := make(map[string][2]int, len(model.Bones))
	for _, b := range model.Bones {
		positions[b.Name] = toPixel(b.Position)
	}

	cross := int(math.Max(3, 0.01*float64(minInt(w, h))))
	for _, b := range model.Bones {
		px := positions[b.Name]
		if parent, ok := positions[b.Parent]; ok {
			c := boneColor
			if isAnimalBone(b.Name) {
				c = animalColor
			}
			drawLine(nrgba, parent[0], parent[1], px[0], px[1], c)
		}
		c := jointColor
		if b.Parent == "" {
			c = rootColor
		}
		drawHLine(nrgba, px[1], px[0]-cross, px[0]+cross, c)
		drawVLine(nrgba, px[0], px[1]-cross, px[1]+cross, c)
	}
	return nrgba
}

func isAnimalBone(name string) bool {
	switch name {
	case "left_ear", "right_ear", "whiskers", "tail_base", "tail_tip":
		return true
	}
	return (strings.HasSuffix(name, "_body") && name != "main_body") || strings.HasSuffix(name, "_head")
}

// fitBones returns a projection from bone space into pixel space
func fitBones(bones []types.Bone, w, h int) func([3]float64) [2]int {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, b := range bones {
		minX = math.Min(minX, b.Position[0])
		maxX = math.Max(maxX, b.Position[0])
		minY = math.Min(minY, b.Position[1])
		maxY = math.Max(maxY, b.Position[1])
	}
	spanX := math.Max(maxX-minX, 1e-6)
	spanY := math.Max(maxY-minY, 1e-6)

	margin := 0.1
	usableW := float64(w) * (1 - 2*margin)
	usableH := float64(h) * (1 - 2*margin)
	scale := math.Min(usableW/spanX, usableH/spanY)
	offX := (float64(w) - spanX*scale) / 2
	offY := (float64(h) - spanY*scale) / 2

	return func(pos [3]float64) [2]int {
		x := offX + (pos[0]-minX)*scale
		y := float64(h) - (offY + (pos[1]-minY)*scale)
		return [2]int{int(x + 0.5), int(y + 0.5)}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func setPixel(img *image.NRGBA, x, y int, c color.NRGBA) {
	if x < 0 || y < 0 || x >= img.Bounds().Dx() || y >= img.Bounds().Dy() {
		return
	}
	i := y*img.Stride + x*4
	img.Pix[i+0] = c.R
	img.Pix[i+1] = c.G
	img.Pix[i+2] = c.B
	img.Pix[i+3] = c.A
}

// drawLine is Bresenham over setPixel
func drawLine(img *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	errAcc := dx + dy
	for {
		setPixel(img, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * errAcc
		if e2 >= dy {
			errAcc += dy
			x0 += sx
		}
		if e2 <= dx {
			errAcc += dx
			y0 += sy
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	for x := x0; x < x1; x++ {
		setPixel(img, x, y, c)
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	for y := y0; y < y1; y++ {
		setPixel(img, x, y, c)
	}
}
