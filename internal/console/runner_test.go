package console

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindredhq/intake/internal/intake"
	"github.com/kindredhq/intake/pkg/media"
	"github.com/kindredhq/intake/pkg/profile"
)

// keep makes the stub answer an input prompt with its default.
const keep = "\x00keep"

type stubDriver struct {
	inputs  []string
	selects []int
	multis  [][]int
	confirm []bool

	asked []InputConfig
	infos []string
}

func (s *stubDriver) Input(_ context.Context, cfg InputConfig) (string, error) {
	s.asked = append(s.asked, cfg)
	if len(s.inputs) == 0 {
		return "", ErrAborted
	}
	v := s.inputs[0]
	s.inputs = s.inputs[1:]
	if v == keep {
		return cfg.Default, nil
	}
	return v, nil
}

func (s *stubDriver) Select(_ context.Context, _ SelectConfig) (int, error) {
	if len(s.selects) == 0 {
		return -1, ErrAborted
	}
	v := s.selects[0]
	s.selects = s.selects[1:]
	return v, nil
}

func (s *stubDriver) MultiSelect(_ context.Context, _ SelectConfig) ([]int, error) {
	if len(s.multis) == 0 {
		return nil, ErrAborted
	}
	v := s.multis[0]
	s.multis = s.multis[1:]
	return v, nil
}

func (s *stubDriver) Confirm(_ context.Context, _ ConfirmConfig) (bool, error) {
	if len(s.confirm) == 0 {
		return false, ErrAborted
	}
	v := s.confirm[0]
	s.confirm = s.confirm[1:]
	return v, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infos = append(s.infos, msg)
	return nil
}

func (s *stubDriver) saw(msg string) int {
	n := 0
	for _, info := range s.infos {
		if strings.Contains(info, msg) {
			n++
		}
	}
	return n
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 2))))
	return buf.Bytes()
}

func newRunner(t *testing.T, driver PromptDriver, opts ...Option) (*Runner, *media.PreviewCache) {
	t.Helper()
	cache, err := media.NewPreviewCache(16)
	require.NoError(t, err)
	img := pngBytes(t)
	fsys := fstest.MapFS{
		"me.png":    {Data: img},
		"a.png":     {Data: img},
		"b.png":     {Data: img},
		"c.png":     {Data: img},
		"notes.txt": {Data: []byte("just some text")},
	}
	opts = append([]Option{WithFS(fsys)}, opts...)
	return NewRunner(driver, profile.DefaultCatalog(), media.NewStager(nil, cache), opts...), cache
}

func TestRunCompletesProfile(t *testing.T) {
	driver := &stubDriver{
		inputs: []string{
			"Ada <b>Lovelace</b>", keep, "36", "ada@example.com", "me.png",
			"A partnership of equals",
			"a.png", "b.png", "",
		},
		selects: []int{
			2, 6, 0, 0, 0, // family, religion, career, financial, continue
			2, 2, 0, // children, conflict, finish
		},
		multis: [][]int{{0, 3}, {0, 1, 2}},
	}
	var completed []profile.Record
	runner, cache := newRunner(t, driver, WithCompletion(func(_ context.Context, rec profile.Record) {
		completed = append(completed, rec)
	}))

	rec, err := runner.Run(context.Background(), profile.Record{})
	require.NoError(t, err)

	catalog := profile.DefaultCatalog()
	assert.Equal(t, "Ada Lovelace", rec.Name)
	assert.Equal(t, "36", rec.Age)
	require.NotNil(t, rec.ProfileImage)
	assert.Equal(t, "me.png", rec.ProfileImage.FileName)
	assert.Equal(t, media.MIMEPNG, rec.ProfileImage.ContentType)
	assert.Equal(t, catalog.FamilyValues[2].Value, rec.FamilyValues)
	assert.Equal(t, catalog.Religion[6].Value, rec.Religion)
	assert.Equal(t, []string{catalog.LifestylePreferences[0].Value, catalog.LifestylePreferences[3].Value}, rec.LifestylePreferences)
	assert.Equal(t, "A partnership of equals", rec.MarriageGoals)
	assert.Len(t, rec.PersonalityTraits, 3)
	assert.Equal(t, 2, rec.Gallery.Len())
	assert.Equal(t, 3, cache.Len())

	require.Len(t, completed, 1)
	assert.Equal(t, rec, completed[0])
	assert.Equal(t, 1, driver.saw("Step 3 of 3: Goals and personality"))

	// Markup in the name is reported and the cleaned answer is offered back.
	assert.Equal(t, 1, driver.saw(intake.MsgMarkupRemoved))
	assert.Equal(t, "Ada Lovelace", driver.asked[1].Default)
}

func TestRunRepromptsInvalidStep(t *testing.T) {
	driver := &stubDriver{
		inputs: []string{
			"", "17", "ada@example.com", "",
			"Ada", "18", keep, "me.png",
		},
	}
	runner, _ := newRunner(t, driver)

	_, err := runner.Run(context.Background(), profile.Record{})
	require.ErrorIs(t, err, ErrAborted)

	assert.Equal(t, 1, driver.saw(profile.MsgNameRequired))
	assert.Equal(t, 1, driver.saw(profile.MsgAgeMinimum))
	assert.Equal(t, 1, driver.saw(profile.MsgProfileImageRequired))
	assert.Equal(t, 2, driver.saw("Step 1 of 3"))
	assert.Equal(t, 1, driver.saw("Step 2 of 3"))

	// The second pass shows each problem next to its prompt and pre-fills
	// what was already answered.
	require.GreaterOrEqual(t, len(driver.asked), 7)
	assert.Contains(t, driver.asked[4].Help, profile.MsgNameRequired)
	assert.Equal(t, "ada@example.com", driver.asked[6].Default)
}

func TestRunReportsRejectedImages(t *testing.T) {
	driver := &stubDriver{
		inputs: []string{"Ada", "30", "ada@example.com", "notes.txt", "missing.png", "me.png"},
	}
	runner, cache := newRunner(t, driver)

	_, err := runner.Run(context.Background(), profile.Record{})
	require.ErrorIs(t, err, ErrAborted)

	assert.Equal(t, 1, driver.saw("Only JPG/PNG files are allowed"))
	assert.Equal(t, 1, driver.saw("Image could not be read"))
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, 1, driver.saw("Step 2 of 3"))
}

func TestRunBackKeepsAnswers(t *testing.T) {
	driver := &stubDriver{
		inputs: []string{
			"Ada", "30", "ada@example.com", "me.png",
			keep, keep, keep, "",
		},
		selects: []int{0, 0, 0, 0, 1}, // step 2 answers, then back
		multis:  [][]int{{1}},
	}
	runner, cache := newRunner(t, driver)

	_, err := runner.Run(context.Background(), profile.Record{})
	require.ErrorIs(t, err, ErrAborted)

	assert.Equal(t, 2, driver.saw("Step 1 of 3"))
	assert.Equal(t, 2, driver.saw("Step 2 of 3"))
	require.GreaterOrEqual(t, len(driver.asked), 8)
	assert.Equal(t, "Ada", driver.asked[4].Default)
	assert.Contains(t, driver.asked[7].Message, "empty keeps me.png")
	assert.Equal(t, 1, cache.Len())
}

func TestRunGalleryReplace(t *testing.T) {
	catalog := profile.DefaultCatalog()
	seed := profile.Record{
		Name: "Ada", Age: "30", Email: "ada@example.com",
		FamilyValues: catalog.FamilyValues[0].Value, Religion: catalog.Religion[0].Value,
		CareerGoals: catalog.CareerGoals[0].Value, FinancialPriorities: catalog.FinancialPriorities[0].Value,
		LifestylePreferences: []string{catalog.LifestylePreferences[0].Value},
	}
	driver := &stubDriver{
		inputs: []string{
			keep, keep, keep, "me.png", // step 1
			"Goals",
			"a.png", "b.png", "c.png", "", // first gallery pass
			keep,
			"b.png", "notes.txt", "a.png", "", // after dropping the first set
		},
		selects: []int{
			0, 0, 0, 0, 0, // step 2 defaults, continue
			0, 0, 1, // children, conflict, back
			0, 0, 0, 0, 0, // step 2 again
			0, 0, 0, // finish
		},
		multis:  [][]int{{0}, {0, 1, 2}, {0}, {0, 1, 2}},
		confirm: []bool{false},
	}
	runner, cache := newRunner(t, driver)

	rec, err := runner.Run(context.Background(), seed)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Gallery.Len())
	assert.Equal(t, []string{"b.png", "a.png"}, []string{rec.Gallery[0].FileName, rec.Gallery[1].FileName})
	// Profile picture plus the two kept gallery photos.
	assert.Equal(t, 3, cache.Len())
	assert.Equal(t, 1, driver.saw("Only JPG/PNG files are allowed"))
}
