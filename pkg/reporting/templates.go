/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: templates.go
Description: HTML template for the Akaylee Cracker batch report. Self contained: no
external scripts or stylesheets.
*/

package reporting

// reportTemplate is the HTML template for the batch report
const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}} - Akaylee Cracker Report</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        body {
            font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            min-height: 100vh;
            color: #333;
        }

        .container { max-width: 1400px; margin: 0 auto; padding: 20px; }

        .card {
            background: rgba(255, 255, 255, 0.95);
            border-radius: 20px;
            padding: 30px;
            margin-bottom: 30px;
            box-shadow: 0 8px 32px rgba(0, 0, 0, 0.1);
        }

        .header { text-align: center; }
        .header h1 { color: #4a5568; font-size: 2.5rem; margin-bottom: 10px; }
        .header p { color: #718096; }

        .stats { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 20px; }
        .stat { text-align: center; }
        .stat .value { font-size: 2rem; font-weight: 700; color: #5a67d8; }
        .stat .label { color: #718096; text-transform: uppercase; font-size: 0.8rem; }

        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 8px 12px; border-bottom: 1px solid #e2e8f0; }
        th { color: #4a5568; }

        .cracked { color: #38a169; font-weight: 600; }
        .failed { color: #e53e3e; font-weight: 600; }
        .timeout, .skipped { color: #d69e2e; font-weight: 600; }

        pre.tree { font-family: 'Fira Code', monospace; font-size: 0.85rem; white-space: pre; overflow-x: auto; }
        .type { color: #a0aec0; }
        .val { color: #2f855a; }
        h2 { color: #4a5568; margin-bottom: 15px; }
    </style>
</head>
<body>
<div class="container">
    <div class="card header">
        <h1>{{.Title}}</h1>
        <p>Model <strong>{{.Model}}</strong>{{if .Source}} ({{.Source}}){{end}}</p>
        <p>Generated {{.GeneratedAt.Format "2006-01-02 15:04:05"}}</p>
    </div>

    <div class="card">
        <div class="stats">
            <div class="stat"><div class="value">{{.Summary.Samples}}</div><div class="label">Samples</div></div>
            <div class="stat"><div class="value">{{.Summary.Cracked}}</div><div class="label">Cracked</div></div>
            <div class="stat"><div class="value">{{.Summary.Failed}}</div><div class="label">Failed</div></div>
            <div class="stat"><div class="value">{{.Summary.Timeouts}}</div><div class="label">Timeouts</div></div>
            <div class="stat"><div class="value">{{printf "%.1f" .SuccessRate}}%</div><div class="label">Success rate</div></div>
            <div class="stat"><div class="value">{{micros .Summary.MeanDuration}}</div><div class="label">Mean crack time</div></div>
            <div class="stat"><div class="value">{{micros .Summary.P95Duration}}</div><div class="label">p95 crack time</div></div>
            <div class="stat"><div class="value">{{printf "%.1f" .Summary.MeanBytes}}</div><div class="label">Mean bytes</div></div>
        </div>
    </div>

    {{with .Failures}}
    <div class="card">
        <h2>Failures</h2>
        <table>
            <tr><th>Kind</th><th>Count</th></tr>
            {{range .}}<tr><td>{{.Kind}}</td><td>{{.Count}}</td></tr>
            {{end}}
        </table>
    </div>
    {{end}}

    <div class="card">
        <h2>Results</h2>
        <table>
            <tr><th>Sample</th><th>Status</th><th>Bytes</th><th>Duration</th><th>Failure</th></tr>
            {{range .Results}}
            <tr>
                <td>{{.SampleName}}</td>
                <td class="{{.Status}}">{{.Status}}</td>
                <td>{{bytes .ConsumedBits}}</td>
                <td>{{micros .Duration}}</td>
                <td>{{with .Failure}}{{.Kind}}{{if .Path}} at {{.Path}}{{end}}{{end}}</td>
            </tr>
            {{end}}
        </table>
    </div>

    {{range .Results}}{{if .Tree}}
    <div class="card">
        <h2>{{.SampleName}}</h2>
        <pre class="tree">{{range tree .Tree}}{{.Indent}}<strong>{{.Node.Name}}</strong> <span class="type">{{.Node.Type}} [{{.Node.Start}}:{{.Node.Stop}}]</span>{{if .Node.Value}} = <span class="val">{{.Node.Value}}</span>{{end}}
{{end}}</pre>
    </div>
    {{end}}{{end}}
</div>
</body>
</html>
`
