// Package imageredact finds personal data in images and paints over it.
//
// An image is decoded, turned upright according to its EXIF orientation,
// run through OCR, and the recognised words are joined into one text that
// goes through the same analyzer as chat messages. Every word whose text
// overlaps a detected entity has its bounding box filled. The result is
// written as PNG to the output Store.
package imageredact

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/image/draw"

	"github.com/gonkalabs/pii-masker-go/internal/apperr"
	"github.com/gonkalabs/pii-masker-go/internal/metrics"
	"github.com/gonkalabs/pii-masker-go/internal/sanitize"
)

// Image sources, used as metric labels.
const (
	SourceBase64 = "base64"
	SourceURL    = "url"
	SourceUpload = "upload"
)

// Redactor redacts images. It is safe for concurrent use.
type Redactor struct {
	detector sanitize.Detector
	entities []string
	ocr      OCR
	store    *Store
	fetcher  *Fetcher
	maxBytes int64
	padding  int
	ocrWait  time.Duration
	metrics  *metrics.Metrics
}

// Option customises a Redactor.
type Option func(*Redactor)

// WithEntities restricts detection to the given entity types.
func WithEntities(entities []string) Option {
	return func(r *Redactor) { r.entities = entities }
}

// WithFetcher sets the downloader used by RedactURL.
func WithFetcher(f *Fetcher) Option {
	return func(r *Redactor) { r.fetcher = f }
}

// WithMaxBytes caps the size of uploaded images. 0 disables the cap.
func WithMaxBytes(n int64) Option {
	return func(r *Redactor) { r.maxBytes = n }
}

// WithPadding grows every filled box by p pixels on each side.
func WithPadding(p int) Option {
	return func(r *Redactor) { r.padding = p }
}

// WithOCRTimeout bounds each OCR run. 0 leaves only the caller's deadline.
func WithOCRTimeout(d time.Duration) Option {
	return func(r *Redactor) { r.ocrWait = d }
}

// WithMetrics records redaction outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Redactor) { r.metrics = m }
}

// New creates a Redactor.
func New(detector sanitize.Detector, ocr OCR, store *Store, opts ...Option) *Redactor {
	r := &Redactor{
		detector: detector,
		entities: sanitize.CanonicalEntities,
		ocr:      ocr,
		store:    store,
		padding:  2,
	}
	for _, o := range opts {
		o(r)
	}
	if r.fetcher == nil {
		r.fetcher = NewFetcher(0, r.maxBytes)
	}
	return r
}

// RedactBase64 redacts a base64-encoded image.
func (r *Redactor) RedactBase64(ctx context.Context, b64 string) (Artifact, error) {
	data, err := DecodeBase64(b64)
	if err != nil {
		r.metrics.RecordImage(SourceBase64, "error")
		return Artifact{}, apperr.New(apperr.Decode, "decode_base64", err)
	}
	return r.redactBytes(ctx, data, SourceBase64)
}

// RedactURL downloads and redacts the image at rawURL.
func (r *Redactor) RedactURL(ctx context.Context, rawURL string) (Artifact, error) {
	data, err := r.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		r.metrics.RecordImage(SourceURL, "error")
		return Artifact{}, err
	}
	return r.redactBytes(ctx, data, SourceURL)
}

// RedactReader redacts an image read from rd, e.g. a multipart upload.
func (r *Redactor) RedactReader(ctx context.Context, rd io.Reader) (Artifact, error) {
	data, err := readLimited(rd, r.maxBytes)
	if err != nil {
		r.metrics.RecordImage(SourceUpload, "error")
		return Artifact{}, apperr.New(apperr.Decode, "read_upload", err)
	}
	return r.redactBytes(ctx, data, SourceUpload)
}

func (r *Redactor) redactBytes(ctx context.Context, data []byte, source string) (Artifact, error) {
	art, err := r.process(ctx, data)
	if err != nil {
		r.metrics.RecordImage(source, "error")
		return Artifact{}, err
	}
	r.metrics.RecordImage(source, "ok")
	return art, nil
}

func (r *Redactor) process(ctx context.Context, data []byte) (Artifact, error) {
	img, format, err := decodeImage(data)
	if err != nil {
		return Artifact{}, apperr.New(apperr.Decode, "decode_image", err)
	}
	upright := orient(img, exifOrientation(data))

	boxes, err := r.Redact(ctx, upright)
	if err != nil {
		return Artifact{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, upright); err != nil {
		return Artifact{}, apperr.New(apperr.Internal, "encode_png", err)
	}
	art, err := r.store.Save(buf.Bytes())
	if err != nil {
		return Artifact{}, apperr.New(apperr.Internal, "save_image", err)
	}
	slog.Info("imageredact: image redacted", "format", format, "boxes", boxes, "file", art.Name)
	return art, nil
}

// Redact paints over every word of img that overlaps a detected entity and
// returns the number of filled boxes.
func (r *Redactor) Redact(ctx context.Context, img draw.Image) (int, error) {
	words, err := r.recognize(ctx, img)
	if err != nil {
		return 0, apperr.New(apperr.Engine, "ocr", err)
	}
	if len(words) == 0 {
		return 0, nil
	}

	text, offsets := joinWords(words)
	entities, err := r.detector.Analyze(ctx, text, r.entities)
	if err != nil {
		return 0, apperr.New(apperr.Engine, "analyze", err)
	}

	bounds := img.Bounds()
	fill := image.NewUniform(color.Black)
	filled := 0
	for i, w := range words {
		if !overlapsAny(offsets[i], entities) {
			continue
		}
		box := w.Box.Inset(-r.padding).Intersect(bounds)
		if box.Empty() {
			continue
		}
		draw.Draw(img, box, fill, image.Point{}, draw.Src)
		filled++
	}
	return filled, nil
}

func (r *Redactor) recognize(ctx context.Context, img image.Image) ([]Word, error) {
	if r.ocrWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.ocrWait)
		defer cancel()
	}
	return r.ocr.Recognize(ctx, img)
}

// span is a byte range of the joined OCR text.
type span struct{ start, end int }

// joinWords concatenates word texts with single spaces and records where
// each word lands.
func joinWords(words []Word) (string, []span) {
	var b strings.Builder
	offsets := make([]span, len(words))
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		start := b.Len()
		b.WriteString(w.Text)
		offsets[i] = span{start: start, end: b.Len()}
	}
	return b.String(), offsets
}

func overlapsAny(s span, entities []sanitize.Entity) bool {
	for _, e := range entities {
		if s.start < e.End && e.Start < s.end {
			return true
		}
	}
	return false
}

// String describes the redactor configuration for startup logs.
func (r *Redactor) String() string {
	return fmt.Sprintf("imageredact(dir=%s, padding=%d, entities=%d)", r.store.Dir(), r.padding, len(r.entities))
}
