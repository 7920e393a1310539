package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/framesim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	framesFile   = "frames.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Dir() string { return s.baseDir }

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Scene      string             `json:"scene"`
	Preset     string             `json:"preset,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
	Integrator string             `json:"integrator"`
	Device     string             `json:"device"`
	Captured   bool               `json:"captured"`
	FPS        float64            `json:"fps"`
	Substeps   int                `json:"substeps"`
	Frames     int64              `json:"frames"`
	Duration   float64            `json:"duration"`
	Particles  int                `json:"particles"`
	Bodies     int                `json:"bodies"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Run is an open recording. Frames are appended to frames.csv as they are
// written; metadata.json is written by Close.
type Run struct {
	meta RunMetadata
	dir  string
	file *os.File
	w    *csv.Writer
	row  []string
}

// Create starts a run directory for meta. The ID and timestamp are filled
// in if empty.
func (s *Store) Create(meta RunMetadata) (*Run, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	if meta.ID == "" {
		meta.ID = fmt.Sprintf("%s_%d", meta.Scene, meta.Timestamp.UnixNano())
	}
	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, err
	}

	f, err := os.Create(filepath.Join(runDir, framesFile))
	if err != nil {
		return nil, err
	}
	r := &Run{meta: meta, dir: runDir, file: f, w: csv.NewWriter(f)}

	header := []string{"time"}
	for i := 0; i < meta.Particles; i++ {
		header = append(header, fmt.Sprintf("p%d_x", i), fmt.Sprintf("p%d_y", i), fmt.Sprintf("p%d_z", i))
	}
	for i := 0; i < meta.Bodies; i++ {
		header = append(header, fmt.Sprintf("b%d_x", i), fmt.Sprintf("b%d_y", i), fmt.Sprintf("b%d_z", i))
	}
	if err := r.w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Run) ID() string  { return r.meta.ID }
func (r *Run) Dir() string { return r.dir }

// WriteFrame appends particle positions and body origins of s at time t.
func (r *Run) WriteFrame(t float64, s *sim.State) error {
	r.row = append(r.row[:0], strconv.FormatFloat(t, 'f', 6, 64))
	for _, p := range s.ParticleQ {
		for k := 0; k < 3; k++ {
			r.row = append(r.row, strconv.FormatFloat(p[k], 'f', 6, 64))
		}
	}
	for _, q := range s.BodyQ {
		for k := 0; k < 3; k++ {
			r.row = append(r.row, strconv.FormatFloat(q.Position[k], 'f', 6, 64))
		}
	}
	r.meta.Frames++
	r.meta.Duration = t
	return r.w.Write(r.row)
}

// Close flushes frames and writes metadata with the final metrics.
func (r *Run) Close(metrics map[string]float64) error {
	r.w.Flush()
	werr := r.w.Error()
	if err := r.file.Close(); err != nil && werr == nil {
		werr = err
	}
	if werr != nil {
		return werr
	}

	r.meta.Metrics = metrics
	metaFile, err := os.Create(filepath.Join(r.dir, metadataFile))
	if err != nil {
		return err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	return enc.Encode(r.meta)
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Frames is the tabular content of frames.csv.
type Frames struct {
	Columns []string
	Times   []float64
	Rows    [][]float64
}

// Column returns the series of the named column, or nil.
func (f *Frames) Column(name string) []float64 {
	for c, col := range f.Columns {
		if col != name {
			continue
		}
		out := make([]float64, len(f.Rows))
		for i, row := range f.Rows {
			if c-1 < len(row) {
				out[i] = row[c-1]
			}
		}
		return out
	}
	return nil
}

func (s *Store) LoadFrames(runID string) (*Frames, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, framesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	out := &Frames{}
	if len(records) == 0 {
		return out, nil
	}
	out.Columns = records[0]

	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		row := make([]float64, 0, len(record)-1)
		for _, field := range record[1:] {
			val, err := strconv.ParseFloat(field, 64)
			if err != nil {
				continue
			}
			row = append(row, val)
		}
		out.Times = append(out.Times, t)
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}
