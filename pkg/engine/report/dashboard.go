// Package report renders a scan's correlated findings and asset graph into
// human-facing artifacts: an interactive HTML dashboard, alongside the CSV
// and JSON export the CLI writes directly.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aegis-scan/aegis/pkg/assetgraph"
	"github.com/aegis-scan/aegis/pkg/scan"
	"github.com/aegis-scan/aegis/pkg/version"
)

// GenerateDashboard renders an interactive HTML dashboard of findings and
// the asset relationship graph to path.
func GenerateDashboard(findings []scan.Finding, g *assetgraph.Graph, path string) error {
	html, err := RenderDashboard(findings, g)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(html), 0644)
}

// RenderDashboard builds the dashboard HTML in memory without touching the
// filesystem, so callers can route the bytes through an arbitrary
// storage.BlobStore instead of a direct file write.
func RenderDashboard(findings []scan.Finding, g *assetgraph.Graph) (string, error) {
	severityCounts := map[scan.Severity]int{}
	for _, f := range findings {
		severityCounts[f.Severity]++
	}
	criticalCount := severityCounts[scan.SeverityCritical]
	highCount := severityCounts[scan.SeverityHigh]

	impactRows := buildImpactTableRows(g)

	graphData, err := buildSankeyData(g)
	if err != nil {
		fmt.Printf("[WARN] Failed to build asset-graph Sankey data: %v\n", err)
		graphData = []byte("{}")
	}

	jsonData, err := json.Marshal(findings)
	if err != nil {
		return "", err
	}

	html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Aegis Posture Report</title>
    <script src="https://d3js.org/d3.v7.min.js"></script>
    <script src="https://unpkg.com/d3-sankey@0.12.3/dist/d3-sankey.min.js"></script>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        :root {
            --bg: #050505;
            --surface: rgba(255, 255, 255, 0.03);
            --surface-hover: rgba(255, 255, 255, 0.06);
            --border: rgba(255, 255, 255, 0.1);
            --primary: #00FF99;
            --secondary: #874BFD;
            --danger: #FF3366;
            --text: #F8FAFC;
            --text-dim: #94A3B8;
        }

        * { box-sizing: border-box; }
        body {
            background: var(--bg);
            color: var(--text);
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
            margin: 0;
            padding: 40px;
            font-size: 14px;
        }

        .header {
            display: flex;
            justify-content: space-between;
            align-items: center;
            margin-bottom: 40px;
            border-bottom: 1px solid var(--border);
            padding-bottom: 20px;
        }
        .logo { font-size: 1.5rem; font-weight: 700; letter-spacing: -1px; }
        .logo span { color: var(--primary); }
        .meta { color: var(--text-dim); }

        .kpi-grid {
            display: grid;
            grid-template-columns: repeat(3, 1fr);
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: var(--surface);
            border: 1px solid var(--border);
            border-radius: 16px;
            padding: 24px;
            transition: transform 0.2s, background 0.2s;
        }
        .card:hover { background: var(--surface-hover); transform: translateY(-2px); }
        .card h3 { margin: 0 0 10px 0; font-size: 0.75rem; color: var(--text-dim); text-transform: uppercase; letter-spacing: 1.2px; }
        .card .value { font-size: 2.5rem; font-weight: 700; }
        .card .value.danger { color: var(--danger); }
        .card .value.safe { color: var(--primary); }

        .analytics-grid {
            display: grid;
            grid-template-columns: 2fr 1fr;
            gap: 20px;
            margin-bottom: 40px;
        }
        .chart-container {
            background: var(--surface);
            border: 1px solid var(--border);
            border-radius: 16px;
            padding: 24px;
            position: relative;
            height: 350px;
            display: flex;
            flex-direction: column;
        }
        .chart-header {
            font-size: 0.85rem;
            font-weight: 600;
            margin-bottom: 16px;
            color: var(--text);
            display: flex;
            justify-content: space-between;
        }
        .chart-body { flex: 1; position: relative; width: 100%; overflow: hidden; }

        .viz-container {
            background: var(--surface);
            border: 1px solid var(--border);
            border-radius: 16px;
            padding: 20px;
            margin-bottom: 40px;
            height: 500px;
            position: relative;
            overflow: hidden;
        }

        .table-wrapper {
            background: var(--surface);
            border: 1px solid var(--border);
            border-radius: 16px;
            overflow: hidden;
            display: flex;
            flex-direction: column;
        }

        .toolbar {
            padding: 16px 24px;
            border-bottom: 1px solid var(--border);
            display: flex;
            gap: 12px;
            align-items: center;
        }
        .search-box {
            background: rgba(0,0,0,0.3);
            border: 1px solid var(--border);
            border-radius: 8px;
            padding: 8px 12px;
            color: var(--text);
            font-family: inherit;
            width: 300px;
            outline: none;
        }
        .search-box:focus { border-color: var(--primary); }

        .table-scroll { width: 100%; overflow-x: auto; }

        table { width: 100%; border-collapse: collapse; min-width: 1000px; }
        th, td { padding: 16px 24px; text-align: left; border-bottom: 1px solid var(--border); white-space: nowrap; }
        th {
            background: rgba(0,0,0,0.5);
            color: var(--text-dim);
            font-size: 0.75rem;
            text-transform: uppercase;
            font-weight: 600;
            cursor: pointer;
            user-select: none;
        }
        th:hover { color: var(--text); }
        tr:last-child td { border-bottom: none; }
        tr:hover { background: rgba(255,255,255,0.02); }

        .badge { padding: 4px 10px; border-radius: 20px; font-size: 0.7rem; font-weight: 700; }
        .badge.critical { background: rgba(255, 51, 102, 0.15); color: var(--danger); }
        .badge.high { background: rgba(255, 51, 102, 0.15); color: var(--danger); }
        .badge.medium { background: rgba(135, 75, 253, 0.15); color: var(--secondary); }
        .badge.low { background: rgba(0, 255, 153, 0.15); color: var(--primary); }

        footer { margin-top: 60px; color: var(--text-dim); font-size: 0.8rem; text-align: center; border-top: 1px solid var(--border); padding-top: 20px; }

        .node rect { cursor: pointer; fill-opacity: .9; shape-rendering: crispEdges; }
        .node text { pointer-events: none; text-shadow: 0 1px 0 #000; font-family: monospace; font-size: 10px; fill: #fff; }
        .link { fill: none; stroke: #000; stroke-opacity: .2; }
        .link:hover { stroke-opacity: .5; }
    </style>
</head>
<body>

    <div class="header">
        <div class="logo">AEGIS<span>_POSTURE</span></div>
        <div class="meta">Generated: {{GENERATED_TIME}}</div>
    </div>

    <div class="kpi-grid">
        <div class="card">
            <h3>Critical Findings</h3>
            <div class="value danger">{{CRITICAL_COUNT}}</div>
        </div>
        <div class="card">
            <h3>High Findings</h3>
            <div class="value danger">{{HIGH_COUNT}}</div>
        </div>
        <div class="card">
            <h3>Graph Status</h3>
            <div class="value safe">TRACED</div>
        </div>
    </div>

    <div class="analytics-grid">
        <div class="chart-container">
            <div class="chart-header">Findings by Severity</div>
            <div class="chart-body">
                <canvas id="barChart"></canvas>
            </div>
        </div>
        <div class="chart-container">
            <div class="chart-header">Exposed vs. Dark Matter</div>
            <div class="chart-body">
                <canvas id="pieChart"></canvas>
            </div>
        </div>
    </div>

    <div class="viz-container">
        <div class="chart-header" style="position: absolute; top: 20px; left: 20px; z-index: 10;">// BLAST RADIUS</div>
        <div id="chart"></div>
    </div>

    <div class="table-wrapper">
        <div class="chart-header">Highest-Impact Assets</div>
        <div class="table-scroll">
            <table id="impactTable">
                <thead>
                    <tr>
                        <th>Asset</th>
                        <th>Type</th>
                        <th>Direct Dependents</th>
                        <th>Cascading Reach</th>
                        <th>Total Risk Score</th>
                    </tr>
                </thead>
                <tbody>
{{IMPACT_TABLE_ROWS}}
                </tbody>
            </table>
        </div>
    </div>

    <div class="table-wrapper">
        <div class="toolbar">
            <input type="text" id="searchInput" class="search-box" placeholder="Filter findings..." onkeyup="filterTable()">
        </div>
        <div class="table-scroll">
            <table id="findingsTable">
                <thead>
                    <tr>
                        <th>Rule</th>
                        <th>Severity</th>
                        <th>Location</th>
                        <th>Status</th>
                        <th>Title</th>
                    </tr>
                </thead>
                <tbody id="table-body">
                    <!-- JS Injection -->
                </tbody>
            </table>
        </div>
    </div>

    <footer>
        Generated by ` + version.AppName + ` ` + version.Current + ` | Multi-tenant GCP posture scanner
    </footer>

    <script>
        window.REPORT_DATA = {{REPORT_DATA}};
        window.GRAPH_DATA = {{GRAPH_DATA}};

        const tbody = document.getElementById('table-body');

        function renderTable(data) {
            tbody.innerHTML = '';
            data.forEach(item => {
                const tr = document.createElement('tr');
                tr.innerHTML = ` + "`" + `
                    <td style="font-weight:600; color: #fff;">` + "`" + ` + item.rule_code + ` + "`" + `</td>
                    <td><span class="badge ` + "`" + ` + item.severity + ` + "`" + `">` + "`" + ` + item.severity + ` + "`" + `</span></td>
                    <td style="color: #94A3B8;">` + "`" + ` + item.location + ` + "`" + `</td>
                    <td>` + "`" + ` + item.status + ` + "`" + `</td>
                    <td>` + "`" + ` + item.title + ` + "`" + `</td>
                ` + "`" + `;
                tbody.appendChild(tr);
            });
        }
        renderTable(window.REPORT_DATA);

        function filterTable() {
            const input = document.getElementById('searchInput');
            const filter = input.value.toUpperCase();
            const filtered = window.REPORT_DATA.filter(item =>
                Object.values(item).some(val => String(val).toUpperCase().includes(filter))
            );
            renderTable(filtered);
        }

        function createGradient(ctx, colorStart, colorEnd) {
            const gradient = ctx.createLinearGradient(0, 400, 0, 0);
            gradient.addColorStop(0, colorStart);
            gradient.addColorStop(1, colorEnd);
            return gradient;
        }

        const severityMap = {};
        window.REPORT_DATA.forEach(item => {
            severityMap[item.severity] = (severityMap[item.severity] || 0) + 1;
        });
        const order = ['critical', 'high', 'medium', 'low'];
        const labels = order.filter(s => severityMap[s]);
        const dataValues = labels.map(s => severityMap[s]);

        const ctxBar = document.getElementById('barChart').getContext('2d');
        const barGradient = createGradient(ctxBar, 'rgba(255, 51, 102, 0.4)', '#FF3366');

        new Chart(ctxBar, {
            type: 'bar',
            data: {
                labels: labels,
                datasets: [{
                    label: 'Findings',
                    data: dataValues,
                    backgroundColor: barGradient,
                    borderColor: '#FF3366',
                    borderWidth: 1,
                    borderRadius: 6,
                    barThickness: 'flex',
                    maxBarThickness: 40
                }]
            },
            options: {
                responsive: true,
                maintainAspectRatio: false,
                animation: { duration: 1500, easing: 'easeOutQuart' },
                plugins: { legend: { display: false } },
                scales: {
                    y: { beginAtZero: true, grid: { color: 'rgba(255,255,255,0.03)' }, ticks: { color: '#64748B' } },
                    x: { grid: { display: false }, ticks: { color: '#94A3B8', font: { weight: 600 } } }
                }
            }
        });

        const exposedCount = window.GRAPH_DATA.nodes ? window.GRAPH_DATA.nodes.filter(n => n.exposed).length : 0;
        const darkMatterCount = window.GRAPH_DATA.nodes ? window.GRAPH_DATA.nodes.length - exposedCount : 0;

        const ctxPie = document.getElementById('pieChart').getContext('2d');
        const gradientExposed = createGradient(ctxPie, '#FF3366', '#FF99AA');
        const gradientDark = createGradient(ctxPie, '#00FF99', '#00CC7A');

        new Chart(ctxPie, {
            type: 'doughnut',
            data: {
                labels: ['Exposed', 'Dark Matter'],
                datasets: [{
                    data: [exposedCount, darkMatterCount],
                    backgroundColor: [gradientExposed, gradientDark],
                    borderColor: ['#000', '#000'],
                    borderWidth: 2,
                    hoverOffset: 10
                }]
            },
            options: {
                responsive: true,
                maintainAspectRatio: false,
                cutout: '75%',
                animation: { animateScale: true, animateRotate: true, duration: 2000, easing: 'easeOutElastic' },
                plugins: { legend: { position: 'bottom', labels: { color: '#94A3B8', padding: 20, font: { size: 11 } } } }
            }
        });

        if (window.GRAPH_DATA && window.GRAPH_DATA.nodes && window.GRAPH_DATA.nodes.length > 0) {
            try {
                const container = document.querySelector('.viz-container');
                const nodeCount = window.GRAPH_DATA.nodes.length;
                const dynamicHeight = Math.max(500, nodeCount * 35);
                const width = container.clientWidth - 40;
                const height = dynamicHeight;

                d3.select(".viz-container").style("height", (height + 60) + "px");
                d3.select("#chart").html("");

                const svg = d3.select("#chart").append("svg")
                    .attr("width", width)
                    .attr("height", height)
                    .style("overflow", "visible");

                const defs = svg.append("defs");

                const sankey = d3.sankey()
                    .nodeWidth(14)
                    .nodePadding(Math.max(10, 50 - nodeCount * 0.5))
                    .extent([[1, 1], [width - 1, height - 6]]);

                const graphDataClone = JSON.parse(JSON.stringify(window.GRAPH_DATA));
                const {nodes, links} = sankey(graphDataClone);

                links.forEach((d, i) => {
                    const gradientID = "gradient-" + i;
                    const gradient = defs.append("linearGradient")
                        .attr("id", gradientID)
                        .attr("gradientUnits", "userSpaceOnUse")
                        .attr("x1", d.source.x1)
                        .attr("x2", d.target.x0);

                    let startColor = d.source.exposed ? "#FF3366" : "#444";
                    if (d.source.name.includes("Internet")) startColor = "#FFFFFF";
                    let endColor = d.target.exposed ? "#FF3366" : "#00FF99";

                    gradient.append("stop").attr("offset", "0%").attr("stop-color", startColor);
                    gradient.append("stop").attr("offset", "100%").attr("stop-color", endColor);
                });

                const link = svg.append("g")
                    .attr("fill", "none")
                    .selectAll("path")
                    .data(links)
                    .enter().append("path")
                    .attr("d", d3.sankeyLinkHorizontal())
                    .attr("stroke-width", d => Math.max(2, d.width))
                    .style("stroke", (d, i) => "url(#gradient-" + i + ")")
                    .style("stroke-opacity", 0.4);

                const node = svg.append("g")
                    .selectAll("g")
                    .data(nodes)
                    .enter().append("g");

                node.append("rect")
                    .attr("x", d => d.x0)
                    .attr("y", d => d.y0)
                    .attr("height", d => Math.max(4, d.y1 - d.y0))
                    .attr("width", d => d.x1 - d.x0)
                    .attr("rx", 3)
                    .style("fill", d => {
                        if (d.name.includes("Internet")) return "#FFFFFF";
                        if (d.exposed) return "#FF3366";
                        return "#3A3A3A";
                    })
                    .style("opacity", 0.9)
                    .style("cursor", "pointer")
                    .style("stroke", "rgba(0,0,0,0.5)")
                    .style("stroke-width", "1px");

                node.append("text")
                    .attr("x", d => d.x0 < width / 2 ? d.x1 + 10 : d.x0 - 10)
                    .attr("y", d => (d.y1 + d.y0) / 2)
                    .attr("dy", "0.35em")
                    .attr("text-anchor", d => d.x0 < width / 2 ? "start" : "end")
                    .text(d => d.name)
                    .style("font-family", "monospace")
                    .style("font-size", "12px")
                    .style("font-weight", "600")
                    .style("fill", "#ddd")
                    .style("opacity", d => (d.y1 - d.y0) > 12 ? 1 : 0)
                    .style("pointer-events", "none");

            } catch (e) {
                console.error("Sankey Error:", e);
                d3.select(".viz-container").append("div")
                    .style("color", "#FF3366")
                    .style("padding", "20px")
                    .html('<strong>Visualization Error:</strong> ' + e.message);
            }
        }
    </script>
</body>
</html>`

	html = strings.ReplaceAll(html, "{{GENERATED_TIME}}", time.Now().Format("2006-01-02 15:04:05"))
	html = strings.ReplaceAll(html, "{{CRITICAL_COUNT}}", fmt.Sprintf("%d", criticalCount))
	html = strings.ReplaceAll(html, "{{HIGH_COUNT}}", fmt.Sprintf("%d", highCount))
	html = strings.ReplaceAll(html, "{{REPORT_DATA}}", string(jsonData))
	html = strings.ReplaceAll(html, "{{GRAPH_DATA}}", string(graphData))
	html = strings.ReplaceAll(html, "{{IMPACT_TABLE_ROWS}}", impactRows)

	return html, nil
}

// buildImpactTableRows renders the top 5 assets by assetgraph.RankImpact
// as HTML table rows for the dashboard's blast-radius table.
func buildImpactTableRows(g *assetgraph.Graph) string {
	if g == nil {
		return `<tr><td colspan="5">No asset graph available.</td></tr>`
	}

	reports := assetgraph.RankImpact(g, 5)
	if len(reports) == 0 {
		return `<tr><td colspan="5">No assets with measurable impact.</td></tr>`
	}

	var b strings.Builder
	for _, r := range reports {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%d</td></tr>\n",
			shortName(r.TargetNode.IDStr()), r.TargetNode.TypeStr(),
			len(r.DirectImpact), len(r.CascadingImpact), r.TotalRiskScore)
	}
	return b.String()
}

// SankeyNode and SankeyLink back the D3 Sankey blast-radius visualization.
type SankeyNode struct {
	Name    string `json:"name"`
	Exposed bool   `json:"exposed"`
}
type SankeyLink struct {
	Source int     `json:"source"`
	Target int     `json:"target"`
	Value  float64 `json:"value"`
}
type SankeyData struct {
	Nodes []SankeyNode `json:"nodes"`
	Links []SankeyLink `json:"links"`
}

func buildSankeyData(g *assetgraph.Graph) ([]byte, error) {
	if g == nil {
		return json.Marshal(SankeyData{Nodes: []SankeyNode{}, Links: []SankeyLink{}})
	}

	g.Mu.RLock()
	defer g.Mu.RUnlock()

	nodes := make([]SankeyNode, 0)
	links := make([]SankeyLink, 0)
	idToIndex := make(map[string]int)

	// Synthetic root: every reachable node ultimately traces back to the
	// internet through some open-ingress firewall rule.
	nodes = append(nodes, SankeyNode{Name: "Internet [0.0.0.0/0]", Exposed: true})
	idToIndex["__internet__"] = 0

	allNodes := g.GetNodes()
	currentIndex := 1
	for _, n := range allNodes {
		idToIndex[n.IDStr()] = currentIndex
		nodes = append(nodes, SankeyNode{Name: shortName(n.IDStr()), Exposed: n.Reachability == assetgraph.ReachabilityReachable})
		currentIndex++
	}

	for _, sourceNode := range allNodes {
		srcIdx, ok := idToIndex[sourceNode.IDStr()]
		if !ok {
			continue
		}
		for _, e := range g.GetEdges(sourceNode.Index) {
			targetNode := g.GetNodeByID(e.TargetID)
			if targetNode == nil {
				continue
			}
			tgtIdx, ok := idToIndex[targetNode.IDStr()]
			if !ok {
				continue
			}
			links = append(links, SankeyLink{Source: srcIdx, Target: tgtIdx, Value: 8.0})
		}
	}

	for _, n := range allNodes {
		if n.TypeStr() == "gcp-firewall-rule" && n.Reachability == assetgraph.ReachabilityReachable {
			links = append(links, SankeyLink{Source: 0, Target: idToIndex[n.IDStr()], Value: 10.0})
		}
	}

	return json.Marshal(SankeyData{Nodes: nodes, Links: links})
}

// shortName trims a "type/name" graph node ID down to its trailing name
// segment for display.
func shortName(id string) string {
	if idx := strings.LastIndex(id, "/"); idx != -1 && idx < len(id)-1 {
		return id[idx+1:]
	}
	return id
}
