// Package dashboard serves a live operations view of the detection pipeline:
// learner state, ingest throughput, tracked sources, and active alerts. It
// exposes a REST endpoint and a WebSocket stream so the page updates without
// polling.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/respond"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/serve"
)

// Snapshot is one dashboard update: the service status plus the alert view.
type Snapshot struct {
	Timestamp   time.Time                   `json:"timestamp"`
	Status      serve.StatusReport          `json:"status"`
	Alerts      []respond.Alert             `json:"alerts"`
	AlertCounts map[respond.AlertStatus]int `json:"alert_counts,omitempty"`
}

// Dashboard streams pipeline state to connected browsers.
type Dashboard struct {
	service *serve.Service
	server  *http.Server

	upgrader         websocket.Upgrader
	clients          map[*websocket.Conn]bool
	clientsMu        sync.RWMutex
	broadcastChannel chan Snapshot
	stopChannel      chan struct{}
	isRunning        bool
	mu               sync.RWMutex
}

// New creates a dashboard server on the given port.
func New(service *serve.Service, port int) *Dashboard {
	d := &Dashboard{
		service:          service,
		upgrader:         websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:          make(map[*websocket.Conn]bool),
		broadcastChannel: make(chan Snapshot, 100),
		stopChannel:      make(chan struct{}),
	}

	r := mux.NewRouter()
	r.HandleFunc("/", d.handleDashboard).Methods("GET")
	r.HandleFunc("/api/snapshot", d.handleSnapshotAPI).Methods("GET")
	r.HandleFunc("/ws", d.handleWebSocket).Methods("GET")

	d.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return d
}

// Start launches the collector, broadcaster, and HTTP server.
func (d *Dashboard) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isRunning {
		return fmt.Errorf("dashboard is already running")
	}

	go d.collector()
	go d.broadcaster()

	go func() {
		log.Info().Str("address", d.server.Addr).Msg("starting dashboard server")
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("dashboard server failed")
		}
	}()

	d.isRunning = true
	return nil
}

// Stop closes client connections and shuts the server down.
func (d *Dashboard) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isRunning {
		return nil
	}

	close(d.stopChannel)

	d.clientsMu.Lock()
	for client := range d.clients {
		client.Close()
	}
	d.clients = make(map[*websocket.Conn]bool)
	d.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to shut down dashboard server")
		return err
	}

	d.isRunning = false
	log.Info().Msg("dashboard stopped")
	return nil
}

// collector samples the pipeline every second and queues snapshots for
// broadcast. Full channel means a slow consumer; the update is skipped.
func (d *Dashboard) collector() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snap := d.collect()
			select {
			case d.broadcastChannel <- snap:
			default:
			}
		case <-d.stopChannel:
			return
		}
	}
}

func (d *Dashboard) broadcaster() {
	for {
		select {
		case snap := <-d.broadcastChannel:
			d.broadcastToClients(snap)
		case <-d.stopChannel:
			return
		}
	}
}

// collect assembles one dashboard snapshot from the service.
func (d *Dashboard) collect() Snapshot {
	snap := Snapshot{
		Timestamp: time.Now(),
		Status:    d.service.Status(),
	}
	if responder := d.service.Responder(); responder != nil {
		snap.Alerts = responder.Tracker().Active()
		snap.AlertCounts = responder.Tracker().Count()
	}
	return snap
}

func (d *Dashboard) broadcastToClients(snap Snapshot) {
	d.clientsMu.Lock()
	defer d.clientsMu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal dashboard snapshot")
		return
	}

	for client := range d.clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			client.Close()
			delete(d.clients, client)
		}
	}
}

func (d *Dashboard) handleSnapshotAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(d.collect())
}

func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	d.clientsMu.Lock()
	d.clients[conn] = true
	d.clientsMu.Unlock()

	// Initial state so the page renders before the first tick.
	if data, err := json.Marshal(d.collect()); err == nil {
		conn.WriteMessage(websocket.TextMessage, data)
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	d.clientsMu.Lock()
	delete(d.clients, conn)
	d.clientsMu.Unlock()
}

func (d *Dashboard) handleDashboard(w http.ResponseWriter, r *http.Request) {
	tmpl := `
<!DOCTYPE html>
<html>
<head>
    <title>NIDS - Detection Dashboard</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
        .container { max-width: 1400px; margin: 0 auto; }
        .header { background: linear-gradient(135deg, #1f4068 0%, #162447 100%); color: white; padding: 20px; border-radius: 10px; margin-bottom: 20px; }
        .header h1 { margin: 0; font-size: 2.2em; text-align: center; }
        .status-bar { display: flex; justify-content: space-between; align-items: center; background: white; padding: 15px; border-radius: 8px; margin-bottom: 20px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .status-indicator { display: flex; align-items: center; font-weight: bold; }
        .status-dot { width: 12px; height: 12px; border-radius: 50%; margin-right: 8px; }
        .status-active { background-color: #28a745; }
        .status-danger { background-color: #dc3545; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(300px, 1fr)); gap: 20px; }
        .card { background: white; border-radius: 10px; padding: 20px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); }
        .card h3 { margin-top: 0; color: #333; border-bottom: 2px solid #eee; padding-bottom: 10px; }
        .metric { display: flex; justify-content: space-between; align-items: center; padding: 8px 0; border-bottom: 1px solid #eee; }
        .metric:last-child { border-bottom: none; }
        .metric-label { font-weight: 500; color: #666; }
        .metric-value { font-weight: bold; color: #333; }
        .metric-alert { color: #dc3545; }
        .alerts-table { width: 100%; border-collapse: collapse; margin-top: 10px; }
        .alerts-table th, .alerts-table td { text-align: left; padding: 8px; border-bottom: 1px solid #eee; font-size: 0.9em; }
        .alerts-table th { background-color: #f8f9fa; font-weight: 600; }
        @keyframes pulse { 0% { opacity: 1; } 50% { opacity: 0.5; } 100% { opacity: 1; } }
        .pulsing { animation: pulse 2s infinite; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Network Intrusion Detection Dashboard</h1>
        </div>

        <div class="status-bar">
            <div class="status-indicator">
                <div class="status-dot" id="pipeline-status"></div>
                <span id="pipeline-status-text">Connecting...</span>
            </div>
            <div class="status-indicator">
                <span id="last-update">Last Updated: --</span>
            </div>
        </div>

        <div class="grid">
            <div class="card">
                <h3>Learner</h3>
                <div class="metric"><span class="metric-label">Strategy</span><span class="metric-value" id="strategy">--</span></div>
                <div class="metric"><span class="metric-label">Ensemble</span><span class="metric-value" id="ensemble">0/0</span></div>
                <div class="metric"><span class="metric-label">Window Size</span><span class="metric-value" id="window-size">0</span></div>
                <div class="metric"><span class="metric-label">Buffered</span><span class="metric-value" id="buffered">0</span></div>
                <div class="metric"><span class="metric-label">Training Rounds</span><span class="metric-value" id="trainings">0</span></div>
                <div class="metric"><span class="metric-label">Drift Resets</span><span class="metric-value" id="drift-resets">0</span></div>
            </div>

            <div class="card">
                <h3>Ingest</h3>
                <div class="metric"><span class="metric-label">Received</span><span class="metric-value" id="received">0</span></div>
                <div class="metric"><span class="metric-label">Parsed</span><span class="metric-value" id="parsed">0</span></div>
                <div class="metric"><span class="metric-label">Dropped</span><span class="metric-value" id="dropped">0</span></div>
                <div class="metric"><span class="metric-label">Parse Failures</span><span class="metric-value" id="parse-fails">0</span></div>
                <div class="metric"><span class="metric-label">Reconnects</span><span class="metric-value" id="reconnects">0</span></div>
                <div class="metric"><span class="metric-label">Tracked Sources</span><span class="metric-value" id="sources">0</span></div>
            </div>

            <div class="card">
                <h3>Active Alerts</h3>
                <div class="metric"><span class="metric-label">Count</span><span class="metric-value" id="alert-count">0</span></div>
                <table class="alerts-table">
                    <thead><tr><th>Source</th><th>Destination</th><th>Raised</th></tr></thead>
                    <tbody id="alerts-table-body">
                        <tr><td colspan="3" style="text-align: center; color: #666;">No active alerts</td></tr>
                    </tbody>
                </table>
            </div>
        </div>
    </div>

    <script>
        const ws = new WebSocket('ws://' + location.host + '/ws');

        ws.onmessage = function(event) {
            updateDashboard(JSON.parse(event.data));
        };

        ws.onclose = function() {
            document.getElementById('pipeline-status').className = 'status-dot status-danger';
            document.getElementById('pipeline-status-text').textContent = 'Disconnected';
            setTimeout(() => location.reload(), 5000);
        };

        function updateDashboard(snap) {
            document.getElementById('last-update').textContent = 'Last Updated: ' + new Date(snap.timestamp).toLocaleTimeString();

            const status = snap.status;
            const learner = status.learner;
            const alerts = snap.alerts || [];

            const dot = document.getElementById('pipeline-status');
            const text = document.getElementById('pipeline-status-text');
            if (alerts.length > 0) {
                dot.className = 'status-dot status-danger pulsing';
                text.textContent = alerts.length + ' active alert(s)';
            } else {
                dot.className = 'status-dot status-active';
                text.textContent = 'Monitoring';
            }

            document.getElementById('strategy').textContent = learner.strategy;
            document.getElementById('ensemble').textContent = learner.ensemble_live + '/' + learner.capacity;
            document.getElementById('window-size').textContent = learner.window_size;
            document.getElementById('buffered').textContent = learner.buffered;
            document.getElementById('trainings').textContent = learner.trainings;
            document.getElementById('drift-resets').textContent = learner.drift_resets;

            const ingest = status.ingest || {};
            document.getElementById('received').textContent = ingest.received || 0;
            document.getElementById('parsed').textContent = ingest.parsed || 0;
            document.getElementById('dropped').textContent = ingest.dropped || 0;
            document.getElementById('parse-fails').textContent = ingest.parse_fails || 0;
            document.getElementById('reconnects').textContent = ingest.reconnects || 0;
            document.getElementById('sources').textContent = status.sources;

            document.getElementById('alert-count').textContent = alerts.length;
            const tbody = document.getElementById('alerts-table-body');
            tbody.innerHTML = '';
            if (alerts.length === 0) {
                tbody.innerHTML = '<tr><td colspan="3" style="text-align: center; color: #666;">No active alerts</td></tr>';
                return;
            }
            for (const alert of alerts) {
                const row = document.createElement('tr');
                row.innerHTML = '<td class="metric-alert">' + alert.source + '</td>' +
                    '<td>' + alert.dest + ':' + alert.dst_port + '</td>' +
                    '<td>' + new Date(alert.raised_at).toLocaleTimeString() + '</td>';
                tbody.appendChild(row);
            }
        }
    </script>
</body>
</html>
	`

	t, err := template.New("dashboard").Parse(tmpl)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	t.Execute(w, nil)
}
