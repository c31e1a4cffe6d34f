package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/hollisb/airgrid/internal/api"
	"github.com/hollisb/airgrid/internal/ingest"
	"github.com/hollisb/airgrid/internal/metrics"
	"github.com/hollisb/airgrid/internal/models"
	"github.com/hollisb/airgrid/internal/smoother"
	"github.com/hollisb/airgrid/internal/store"
)

type appContext struct {
	store *store.Store
}

// GridFlags describes the fixed output grid. Defaults cover the Madrid
// metro area at roughly 1 km resolution.
type GridFlags struct {
	LonMin  float64 `help:"Western grid edge (degrees)." default:"-3.85"`
	LonMax  float64 `help:"Eastern grid edge (degrees)." default:"-3.55"`
	LonStep float64 `help:"Grid spacing along longitude (degrees)." default:"0.01"`
	LatMin  float64 `help:"Southern grid edge (degrees)." default:"40.30"`
	LatMax  float64 `help:"Northern grid edge (degrees)." default:"40.55"`
	LatStep float64 `help:"Grid spacing along latitude (degrees)." default:"0.01"`
}

func (g GridFlags) spec() smoother.GridSpec {
	return smoother.GridSpec{
		XMin: g.LonMin, XMax: g.LonMax, XStep: g.LonStep,
		YMin: g.LatMin, YMax: g.LatMax, YStep: g.LatStep,
	}
}

type SweepFlags struct {
	HMin   float64 `help:"Smallest candidate bandwidth." default:"0.005"`
	HMax   float64 `help:"Largest candidate bandwidth." default:"0.2"`
	HSteps int     `help:"Number of candidate bandwidths." default:"20"`
}

type ImportCmd struct {
	File string `arg:"" help:"CSV file of readings to import." type:"existingfile"`
}

func (c *ImportCmd) Run(app *appContext) error {
	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	readings, skipped, err := ingest.ParseCSV(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", c.File, err)
	}
	if err := app.store.InsertReadings(readings); err != nil {
		return fmt.Errorf("insert readings: %w", err)
	}
	metrics.ReadingsIngested.WithLabelValues("csv").Add(float64(len(readings)))
	log.Printf("imported %d readings from %s (%d rows skipped)", len(readings), c.File, skipped)
	return nil
}

type FetchCmd struct {
	BaseURL string        `help:"Sensor network API base URL." env:"AIRGRID_API_URL" default:"https://api.sensors.example.com"`
	APIKey  string        `help:"Sensor network API key." env:"AIRGRID_API_KEY" required:""`
	Since   time.Duration `help:"How far back to fetch." default:"24h"`
}

func (c *FetchCmd) Run(app *appContext) error {
	client := ingest.NewSensorAPI(c.BaseURL, c.APIKey)
	readings, err := client.FetchReadings(time.Now().UTC().Add(-c.Since))
	if err != nil {
		return fmt.Errorf("fetch readings: %w", err)
	}
	if err := app.store.InsertReadings(readings); err != nil {
		return fmt.Errorf("insert readings: %w", err)
	}
	metrics.ReadingsIngested.WithLabelValues("api").Add(float64(len(readings)))
	log.Printf("fetched %d readings", len(readings))
	return nil
}

type ArchiveCmd struct {
	Host string `help:"FTP host serving historical archives." env:"AIRGRID_FTP_HOST" default:"ftp.airquality.example.com:21"`
	Path string `arg:"" help:"Remote path of the CSV archive to download."`
}

func (c *ArchiveCmd) Run(app *appContext) error {
	client := ingest.NewArchiveClient(c.Host)
	readings, skipped, err := client.FetchArchive(c.Path)
	if err != nil {
		return fmt.Errorf("fetch archive %s: %w", c.Path, err)
	}
	if err := app.store.InsertReadings(readings); err != nil {
		return fmt.Errorf("insert readings: %w", err)
	}
	metrics.ReadingsIngested.WithLabelValues("ftp").Add(float64(len(readings)))
	log.Printf("imported %d archived readings from %s (%d rows skipped)", len(readings), c.Path, skipped)
	return nil
}

type SweepCmd struct {
	SweepFlags
	Timeout time.Duration `help:"Abort the sweep after this long." default:"10m"`
}

func (c *SweepCmd) Run(app *appContext) error {
	readings, err := app.store.GetAllReadings()
	if err != nil {
		return fmt.Errorf("load readings: %w", err)
	}
	byStep := smoother.PartitionBySteps(readings)
	candidates := smoother.Candidates(c.HMin, c.HMax, c.HSteps)

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	best, sweep, err := smoother.SelectBandwidth(ctx, candidates, byStep)
	if err != nil {
		return fmt.Errorf("bandwidth selection: %w", err)
	}
	if err := app.store.InsertSweep(time.Now().UTC(), sweep); err != nil {
		return fmt.Errorf("persist sweep: %w", err)
	}
	log.Printf("swept %d bandwidths over %d time steps, best h=%g", len(candidates), len(byStep), best)
	return nil
}

type SmoothCmd struct {
	GridFlags
	SweepFlags
	Bandwidth float64       `help:"Fixed bandwidth; when zero, select one by cross-validation." default:"0"`
	Timeout   time.Duration `help:"Abort selection and smoothing after this long." default:"30m"`
	Out       string        `help:"Also write the run to this CSV file." optional:""`
}

func (c *SmoothCmd) Run(app *appContext) error {
	spec := c.spec()
	if err := spec.Validate(); err != nil {
		return err
	}
	grid, err := spec.Points()
	if err != nil {
		return err
	}

	readings, err := app.store.GetAllReadings()
	if err != nil {
		return fmt.Errorf("load readings: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	h := c.Bandwidth
	if h <= 0 {
		byStep := smoother.PartitionBySteps(readings)
		candidates := smoother.Candidates(c.HMin, c.HMax, c.HSteps)
		best, sweep, err := smoother.SelectBandwidth(ctx, candidates, byStep)
		if err != nil {
			return fmt.Errorf("bandwidth selection: %w", err)
		}
		if err := app.store.InsertSweep(time.Now().UTC(), sweep); err != nil {
			return fmt.Errorf("persist sweep: %w", err)
		}
		h = best
		log.Printf("selected bandwidth h=%g from %d candidates", h, len(candidates))
	}

	result, err := smoother.Run(ctx, readings, grid, h)
	if err != nil {
		return fmt.Errorf("smooth: %w", err)
	}

	runID, err := app.store.CreateRun(spec, result)
	if err != nil {
		return fmt.Errorf("persist run: %w", err)
	}
	log.Printf("run %d: %d steps, %d values, %d cells without support",
		runID, len(result.Steps), len(result.Values), result.Missing)

	if c.Out != "" {
		if err := writeRunCSV(c.Out, result.Values); err != nil {
			return fmt.Errorf("write %s: %w", c.Out, err)
		}
		log.Printf("wrote %s", c.Out)
	}
	return nil
}

type ExportCmd struct {
	RunID int64  `name:"run" help:"Run to export; defaults to the latest." default:"0"`
	Out   string `arg:"" help:"Output CSV file." optional:"" default:"-"`
}

func (c *ExportCmd) Run(app *appContext) error {
	runID := c.RunID
	if runID == 0 {
		run, err := app.store.GetLatestRun()
		if err != nil {
			return fmt.Errorf("latest run: %w", err)
		}
		if run == nil {
			return fmt.Errorf("no smoothing runs to export")
		}
		runID = run.ID
	}

	values, err := app.store.GetSmoothedValues(runID)
	if err != nil {
		return fmt.Errorf("load run %d: %w", runID, err)
	}
	if len(values) == 0 {
		return fmt.Errorf("run %d not found", runID)
	}

	if c.Out == "-" {
		return writeCSV(os.Stdout, values)
	}
	if err := writeRunCSV(c.Out, values); err != nil {
		return err
	}
	log.Printf("exported run %d (%d rows) to %s", runID, len(values), c.Out)
	return nil
}

type ServeCmd struct {
	Port string `help:"HTTP server port." env:"AIRGRID_PORT" default:"8080"`
}

func (c *ServeCmd) Run(app *appContext) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := api.NewServer(app.store, c.Port)
	log.Printf("starting server on :%s", c.Port)
	return server.Run(ctx)
}

func writeRunCSV(path string, values []models.SmoothedValue) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return writeCSV(f, values)
}

func writeCSV(out io.Writer, values []models.SmoothedValue) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"time", "latitude", "longitude", "value", "grid_id"}); err != nil {
		return err
	}
	for _, sv := range values {
		value := ""
		if sv.Value.Valid {
			value = strconv.FormatFloat(sv.Value.Float64, 'g', -1, 64)
		}
		row := []string{
			sv.MeasuredAt.UTC().Format(time.RFC3339),
			strconv.FormatFloat(sv.Latitude, 'g', -1, 64),
			strconv.FormatFloat(sv.Longitude, 'g', -1, 64),
			value,
			strconv.Itoa(sv.GridID),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

var cli struct {
	DB string `help:"Path to SQLite database." env:"AIRGRID_DB" default:"data/airgrid.db"`

	Import  ImportCmd  `cmd:"" help:"Import readings from a CSV file."`
	Fetch   FetchCmd   `cmd:"" help:"Fetch recent readings from the sensor network API."`
	Archive ArchiveCmd `cmd:"" help:"Download a historical CSV archive over FTP."`
	Sweep   SweepCmd   `cmd:"" help:"Cross-validate candidate bandwidths and persist the sweep."`
	Smooth  SmoothCmd  `cmd:"" help:"Smooth stored readings onto the grid and persist the run."`
	Export  ExportCmd  `cmd:"" help:"Export a smoothing run as long-form CSV."`
	Serve   ServeCmd   `cmd:"" help:"Serve the read-only HTTP API and metrics."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("airgrid"),
		kong.Description("Kernel-smoothed air quality fields from sparse city sensors."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	db, err := sql.Open("sqlite", cli.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	if err := kctx.Run(&appContext{store: st}); err != nil {
		log.Fatalf("%s: %v", kctx.Command(), err)
	}
}
