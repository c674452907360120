package patterns

import (
	"time"

	"github.com/Swind/go-task-patterns/core"
)

// FileSpec names a simulated download and the inclusive range its chunk
// count is drawn from.
type FileSpec struct {
	Name      string
	MinChunks int
	MaxChunks int
}

// Download is a FileSpec with its chunk count drawn.
type Download struct {
	Name   string
	Chunks int
}

type ProgressConfig struct {
	ChunkInterval time.Duration
	Files         []FileSpec
}

func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{
		ChunkInterval: 500 * time.Millisecond,
		Files: []FileSpec{
			{Name: "document.pdf", MinChunks: 5, MaxChunks: 9},
			{Name: "image.jpg", MinChunks: 3, MaxChunks: 6},
			{Name: "video.mp4", MinChunks: 10, MaxChunks: 14},
			{Name: "audio.mp3", MinChunks: 4, MaxChunks: 7},
			{Name: "archive.zip", MinChunks: 8, MaxChunks: 11},
		},
	}
}

func (c ProgressConfig) withDefaults() ProgressConfig {
	d := DefaultProgressConfig()
	if c.ChunkInterval <= 0 {
		c.ChunkInterval = d.ChunkInterval
	}
	if len(c.Files) == 0 {
		c.Files = d.Files
	}
	return c
}

// ProgressController downloads every file concurrently, one unit per file,
// and publishes overall progress as completed*100/total after each file.
// The run is Finished only when every file completed; a cancelled run keeps
// its partial progress. A failing download cancels the others and fails the
// run.
type ProgressController struct {
	*core.Controller
	cfg   ProgressConfig
	files []Download

	// fetchChunk, when set, runs after each chunk wait. Tests use it to inject
	// failures.
	fetchChunk func(file Download, chunk int) error
}

// NewProgressController draws each file's chunk count once; every run of the
// controller downloads the same files.
func NewProgressController(deps Deps, cfg ProgressConfig) *ProgressController {
	cfg = cfg.withDefaults()
	r := deps.rand()

	files := make([]Download, 0, len(cfg.Files))
	for _, f := range cfg.Files {
		chunks := intRange(r, f.MinChunks, f.MaxChunks+1)
		if chunks < 1 {
			chunks = 1
		}
		files = append(files, Download{Name: f.Name, Chunks: chunks})
	}

	return &ProgressController{
		Controller: core.NewController(deps.controllerOptions(NameProgress, true, "Cancelling all downloads...")),
		cfg:        cfg,
		files:      files,
	}
}

func (c *ProgressController) Config() ProgressConfig { return c.cfg }

// Files returns the downloads with their drawn chunk counts.
func (c *ProgressController) Files() []Download {
	return append([]Download(nil), c.files...)
}

func (c *ProgressController) Start() error {
	_, err := c.Begin(func(rc *core.RunContext) {
		out := c.Output()
		out.Append("Starting concurrent downloads...")
		out.Appendf("%d files, one unit each", len(c.files))
		out.Append("")

		total := len(c.files)
		completed := 0
		var failure error

		specs := make([]core.UnitSpec[int], 0, total)
		for _, f := range c.files {
			specs = append(specs, core.UnitSpec[int]{
				Name: f.Name,
				Run:  c.download(f, 0),
			})
		}

		core.SpawnAll(rc, specs, func(res core.UnitResult[int]) {
			switch res.Outcome {
			case core.OutcomeSucceeded:
				completed++
				c.Progress().Set(completed * 100 / total)
				out.Appendf("%s completed", res.Unit.Name)
			case core.OutcomeCancelled:
				out.Appendf("%s cancelled", res.Unit.Name)
			default:
				out.Appendf("%s failed: %v", res.Unit.Name, res.Err)
				if failure == nil {
					failure = res.Err
					rc.CancelUnits()
				}
			}
		}, func([]core.UnitResult[int]) {
			out.Append("")
			switch {
			case failure != nil:
				out.Append("Downloads failed")
				rc.Finish(core.StateFailed, failure)
			case completed == total:
				out.Append("All downloads finished!")
				rc.Finish(core.StateFinished, nil)
			default:
				out.Append("Downloads cancelled")
				rc.Finish(core.StateCancelled, nil)
			}
		})
	})
	return err
}

// download is the step that follows chunk done of f: a check of that chunk,
// then a single wait for the next one.
func (c *ProgressController) download(f Download, done int) core.UnitFunc[int] {
	return func(u *core.UnitContext[int]) {
		if done == 0 {
			u.Logf("Downloading %s (%d chunks)...", f.Name, f.Chunks)
		} else {
			if c.fetchChunk != nil {
				if err := c.fetchChunk(f, done); err != nil {
					u.Return(done-1, err)
					return
				}
			}
			u.Logf("   %s: %d%%", f.Name, done*100/f.Chunks)
			if done == f.Chunks {
				u.Return(f.Chunks, nil)
				return
			}
		}
		u.After(c.cfg.ChunkInterval, c.download(f, done+1))
	}
}
