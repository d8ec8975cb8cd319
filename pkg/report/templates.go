/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: templates.go
Description: HTML template for analysis reports.
*/

package report

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; background: #f7fafc; color: #2d3748; margin: 0; }
        .container { max-width: 1100px; margin: 0 auto; padding: 24px; }
        .header { background: #fff; border-radius: 12px; padding: 24px; box-shadow: 0 4px 16px rgba(0,0,0,0.08); text-align: center; }
        .stats { display: flex; gap: 16px; margin: 24px 0; }
        .stat { flex: 1; background: #fff; border-radius: 12px; padding: 16px; text-align: center; box-shadow: 0 4px 16px rgba(0,0,0,0.08); }
        .stat .value { font-size: 2rem; font-weight: 700; }
        .leaky { color: #c53030; }
        table { width: 100%; border-collapse: collapse; background: #fff; border-radius: 12px; overflow: hidden; }
        th, td { padding: 10px 12px; border-bottom: 1px solid #edf2f7; text-align: left; font-size: 0.9rem; }
        th { background: #edf2f7; }
        .meta { color: #718096; font-size: 0.85rem; }
    </style>
</head>
<body>
<div class="container">
    <div class="header">
        <h1>{{.Title}}</h1>
        <p class="meta">Run {{.ID}} on {{.Target}}</p>
        <p class="meta">Started {{stamp .StartedAt}}{{if not .FinishedAt.IsZero}}, finished {{stamp .FinishedAt}} ({{round .Duration}}){{end}}</p>
    </div>
    {{with .Summary}}
    <div class="stats">
        <div class="stat"><div class="value">{{comma .TotalApps}}</div>Analyzed</div>
        <div class="stat"><div class="value{{if .TotalLeaks}} leaky{{end}}">{{comma .TotalLeaks}}</div>Leaks found</div>
        <div class="stat"><div class="value">{{len .LeakyAPKs}}</div>Leaky apks</div>
    </div>
    {{if .Results}}
    <table>
        <tr><th>APK</th><th>Package</th><th>Version</th><th>Leaks</th><th>Duration</th></tr>
        {{range .Results}}
        <tr>
            <td>{{.APK}}</td>
            <td>{{with .Info}}{{.PackageName}}{{end}}</td>
            <td>{{with .Info}}{{.VersionName}}{{end}}</td>
            <td{{if .Leaks}} class="leaky"{{end}}>{{.Leaks}}</td>
            <td>{{round .Duration}}</td>
        </tr>
        {{end}}
    </table>
    {{else}}
    <p>No apks analyzed</p>
    {{end}}
    {{end}}
    <p class="meta">java: {{.Settings.Java}} | flowdroid: {{.Settings.FlowDroid}} | android: {{.Settings.Android}} | sources and sinks: {{.Settings.SourcesSinks}}</p>
</div>
</body>
</html>
`
