package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/occupancy.report/internal/httputil"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// AttachDebugRoutes adds the chart pages to the /debug/ index on mux.
func (s *Server) AttachDebugRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.Handle("charts/tracks", "Scatter of live track centroids", http.HandlerFunc(s.handleTracksChart))
	debug.Handle("charts/events", "Collector deliveries per route", http.HandlerFunc(s.handleEventsChart))
}

// handleTracksChart plots each live identity at its centroid in frame
// pixels. Point size follows the number of frames the identity was seen.
func (s *Server) handleTracksChart(w http.ResponseWriter, r *http.Request) {
	if s.opts.Tracks == nil {
		httputil.ServiceUnavailable(w, "this scenario does not track identities")
		return
	}
	tracks := s.opts.Tracks.Snapshot()

	pts := make([]opts.ScatterData, 0, len(tracks))
	maxHits := 1
	for i := range tracks {
		c := tracks[i].Centroid()
		pts = append(pts, opts.ScatterData{
			Name:  fmt.Sprintf("id %d", tracks[i].ID),
			Value: []interface{}{c.X, c.Y, tracks[i].Hits},
		})
		if tracks[i].Hits > maxHits {
			maxHits = tracks[i].Hits
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Tracks", Theme: "dark", Width: "960px", Height: "540px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Live tracks", Subtitle: fmt.Sprintf("device=%s count=%d", s.opts.DeviceID, len(pts))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: 1920, Name: "x (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1080, Name: "y (px)", NameLocation: "middle", NameGap: 35}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxHits),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("tracks", pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render tracks chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleEventsChart renders journal delivery counts per route as stacked
// bars.
func (s *Server) handleEventsChart(w http.ResponseWriter, r *http.Request) {
	if s.opts.Journal == nil {
		httputil.ServiceUnavailable(w, "event journal not configured")
		return
	}
	counts, err := s.opts.Journal.CountsByRoute(r.Context())
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to count events: %v", err))
		return
	}

	x := make([]string, 0, len(counts))
	ok := make([]opts.BarData, 0, len(counts))
	failed := make([]opts.BarData, 0, len(counts))
	for _, c := range counts {
		x = append(x, c.Route)
		ok = append(ok, opts.BarData{Value: c.OK})
		failed = append(failed, opts.BarData{Value: c.Failed})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Collector deliveries", Subtitle: "device=" + s.opts.DeviceID}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("sent", ok, charts.WithBarChartOpts(opts.BarChart{Stack: "deliveries"})).
		AddSeries("failed", failed, charts.WithBarChartOpts(opts.BarChart{Stack: "deliveries"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff5252"}))

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsHost)
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
