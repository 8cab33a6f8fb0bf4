// Package dataset loads the analyzed prompt corpus that rounds draw their
// challenges from. The corpus is produced offline by the difficulty analyzer
// and shipped as a CSV next to the image directory.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/promptduel/server/internal/models"
)

// ErrEmptyCorpus is returned when no usable challenge rows are available.
var ErrEmptyCorpus = errors.New("dataset: no challenges loaded")

var expectedHeader = []string{
	"prompt", "image_file", "difficulty", "difficulty_score",
	"word_count", "named_entity_count", "has_art_style", "has_abstract_concepts",
}

// Dataset is an immutable in-memory corpus with a concurrency-safe picker.
type Dataset struct {
	challenges []models.Challenge

	mu  sync.Mutex
	rng *rand.Rand
}

// New wraps already-parsed challenges; tests use it to skip file loading.
func New(challenges []models.Challenge, seed int64) *Dataset {
	return &Dataset{
		challenges: challenges,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// LoadFile reads the analyzer CSV at path. Malformed rows are skipped with a
// warning rather than failing the whole corpus.
func LoadFile(path string, seed int64, logger logrus.FieldLogger) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Load(f, seed, logger)
}

// Load parses analyzer CSV rows from r.
func Load(r io.Reader, seed int64, logger logrus.FieldLogger) (*Dataset, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(expectedHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read dataset header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	var challenges []models.Challenge
	line := 1
	for {
		line++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.WithError(err).Warnf("dataset: skipping row %d", line)
			continue
		}
		ch, err := parseRow(record)
		if err != nil {
			logger.WithError(err).Warnf("dataset: skipping row %d", line)
			continue
		}
		challenges = append(challenges, ch)
	}

	if len(challenges) == 0 {
		return nil, ErrEmptyCorpus
	}
	logger.WithField("challenges", len(challenges)).Info("dataset loaded")
	return New(challenges, seed), nil
}

func checkHeader(header []string) error {
	if len(header) != len(expectedHeader) {
		return fmt.Errorf("dataset: expected %d columns, got %d", len(expectedHeader), len(header))
	}
	for i, col := range expectedHeader {
		if strings.TrimSpace(strings.ToLower(header[i])) != col {
			return fmt.Errorf("dataset: column %d is %q, want %q", i, header[i], col)
		}
	}
	return nil
}

func parseRow(rec []string) (models.Challenge, error) {
	prompt := strings.TrimSpace(rec[0])
	imageFile := strings.TrimSpace(rec[1])
	if prompt == "" || imageFile == "" {
		return models.Challenge{}, errors.New("empty prompt or image_file")
	}

	tier, err := parseTier(rec[2])
	if err != nil {
		return models.Challenge{}, err
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
	if err != nil {
		return models.Challenge{}, fmt.Errorf("difficulty_score: %w", err)
	}
	wordCount, err := strconv.Atoi(strings.TrimSpace(rec[4]))
	if err != nil {
		return models.Challenge{}, fmt.Errorf("word_count: %w", err)
	}
	entityCount, err := strconv.Atoi(strings.TrimSpace(rec[5]))
	if err != nil {
		return models.Challenge{}, fmt.Errorf("named_entity_count: %w", err)
	}
	hasStyle, err := parseBool(rec[6])
	if err != nil {
		return models.Challenge{}, fmt.Errorf("has_art_style: %w", err)
	}
	hasAbstract, err := parseBool(rec[7])
	if err != nil {
		return models.Challenge{}, fmt.Errorf("has_abstract_concepts: %w", err)
	}

	return models.Challenge{
		TargetText: prompt,
		ImagePath:  imageFile,
		Difficulty: tier,
		Meta: models.DifficultyMeta{
			WordCount:           wordCount,
			NamedEntityCount:    entityCount,
			DifficultyScore:     score,
			HasArtStyle:         hasStyle,
			HasAbstractConcepts: hasAbstract,
		},
	}, nil
}

func parseTier(s string) (models.DifficultyTier, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "easy":
		return models.DifficultyEasy, nil
	case "medium":
		return models.DifficultyMedium, nil
	case "hard":
		return models.DifficultyHard, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
}

func parseBool(s string) (bool, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no", "":
		return false, nil
	default:
		return false, fmt.Errorf("bad boolean %q", s)
	}
}

// Len reports the corpus size.
func (d *Dataset) Len() int { return len(d.challenges) }

// NextChallenge picks a challenge uniformly at random. Repeats across rounds
// are allowed; the corpus is large enough that back-to-back repeats are rare.
func (d *Dataset) NextChallenge() (models.Challenge, error) {
	if len(d.challenges) == 0 {
		return models.Challenge{}, ErrEmptyCorpus
	}
	d.mu.Lock()
	idx := d.rng.Intn(len(d.challenges))
	d.mu.Unlock()
	return d.challenges[idx], nil
}
