package render

import (
	"context"
	"fmt"
	"html/template"
	"io"

	"celebria/internal/live"
)

// NodeTemplateString 绘制 Node 树，每个 Role 一个分支，子节点递归。
const NodeTemplateString = `
{{- define "children"}}{{range .Children}}{{template "node" .}}{{end}}{{end}}
{{- define "node"}}
{{- if eq .Role "document"}}<div class="celebria-doc" data-mode="{{.Mode}}" style="{{css .Style}}">{{template "children" .}}</div>
{{- else if eq .Role "frame"}}<div class="celebria-frame" data-page="{{.Frame.Index}}" data-logical-w="{{.Frame.LogicalWidth}}" data-logical-h="{{.Frame.LogicalHeight}}" data-scale="{{.Frame.Scale}}" style="{{css .Style}}">{{template "children" .}}</div>
{{- else if eq .Role "page"}}<div class="celebria-page" style="{{css .Style}}">{{template "children" .}}</div>
{{- else if eq .Role "sections"}}<div class="celebria-sections" style="{{css .Style}}">{{template "children" .}}</div>
{{- else if eq .Role "section"}}<div class="celebria-section"{{with .Section}} data-section="{{.}}"{{end}} style="{{css .Style}}">{{.Text}}</div>
{{- else if eq .Role "element"}}<div class="celebria-element" data-element-id="{{.ElementID}}" data-kind="{{.Kind}}" style="{{css .Style}}">{{template "children" .}}</div>
{{- else if eq .Role "text"}}<div class="el-text" style="{{css .Style}}">{{.Text}}</div>
{{- else if eq .Role "image"}}<img class="el-image" src="{{.Src}}" alt="" style="{{css .Style}}">
{{- else if eq .Role "map"}}<div class="el-map" style="{{css .Style}}"><iframe src="{{.Src}}" style="border: 0; width: 100%; height: 100%;" loading="lazy" referrerpolicy="no-referrer-when-downgrade" allowfullscreen></iframe></div>
{{- else if eq .Role "countdown"}}<div class="el-countdown" data-countdown-target="{{.Countdown.Target}}" style="{{css .Style}}">
{{- range $i, $part := .Countdown.Parts}}<div class="cd-unit"><div class="cd-num" data-unit="{{$i}}">{{$part}}</div><div class="cd-label">{{index $.Labels $i}}</div></div>{{end -}}
</div>
{{- else if eq .Role "whatsapp"}}<a class="el-whatsapp" href="{{.Href}}" target="_blank" rel="noopener noreferrer" style="{{css .Style}}">{{.Text}}</a>
{{- else if eq .Role "confirm"}}<button type="button" class="el-confirm" data-confirm-label="{{.Confirm.Label}}" data-confirm-date="{{.Confirm.DateISO}}" data-confirm-end="{{.Confirm.EndDateISO}}"{{with .Confirm.Calendar}} data-calendar="{{.Data}}" data-calendar-name="{{.FileName}}" data-calendar-type="{{.ContentType}}"{{end}} style="{{css .Style}}">{{.Text}}</button>
{{- else if eq .Role "audio"}}<div class="celebria-audio" aria-hidden="true" style="{{css .Style}}">
{{- if eq .Audio.Source "youtube"}}<div id="celebria-yt" data-video-id="{{.Audio.VideoID}}"></div>
{{- else}}<audio src="{{.Audio.URL}}" loop muted autoplay playsinline></audio>{{end -}}
</div>
{{- else if eq .Role "placeholder"}}<div class="celebria-placeholder" style="{{css .Style}}">{{template "children" .}}</div>
{{- else if eq .Role "empty"}}<div class="el-empty" style="{{css .Style}}">{{.Text}}</div>
{{- end}}
{{- end}}`

// CountdownLabels 是倒计时数字下方的单位说明。
var CountdownLabels = [4]string{"D", "H", "M", "S"}

var funcs = template.FuncMap{
	"css": func(s Style) template.CSS {
		// 值已经过 Style.Set 过滤
		return template.CSS(s.String())
	},
}

var nodeTemplate = template.Must(template.New("node").Funcs(funcs).Parse(NodeTemplateString))

var pageTemplate = template.Must(template.Must(nodeTemplate.Clone()).New("page").Parse(PageTemplateString))

// WriteHTML 写出 n 的 HTML 片段。
func WriteHTML(w io.Writer, n *Node) error {
	if n == nil {
		return nil
	}
	if err := nodeTemplate.ExecuteTemplate(w, "node", prepare(n)); err != nil {
		return fmt.Errorf("execute node template: %w", err)
	}
	return nil
}

// view 包装节点，让每个模板分支看到同样的结构。
type view struct {
	*Node
	Labels   [4]string
	Children []view
}

func prepare(n *Node) view {
	v := view{Node: n, Labels: CountdownLabels}
	for _, c := range n.Children {
		v.Children = append(v.Children, prepare(c))
	}
	return v
}

// PageData 是完整 HTML 文档的输入。
type PageData struct {
	Title string
	Lang  string
	// Slug 是宾客本地确认列表的键。
	Slug string
	// ConfirmAction 是确认对话框提交的地址，为空时不启用对话框。
	ConfirmAction string
	Root          *Node
	// Scripts 是运行时之后追加的外部脚本，每个只出现一次。
	Scripts []string
}

type pageView struct {
	PageData
	Body    view
	Runtime template.JS
}

// WritePage 围绕 root 写出完整 HTML 文档，包含运行时脚本：尺寸变化时重新缩放，
// 刷新倒计时，首次手势后取消音频静音，并驱动确认对话框。
func WritePage(ctx context.Context, w io.Writer, data PageData) error {
	if data.Lang == "" {
		data.Lang = "es"
	}
	if data.Title == "" {
		data.Title = PlaceholderTitle
	}
	scripts, err := RequiredScripts(ctx, data.Root)
	if err != nil {
		return err
	}
	data.Scripts = append(data.Scripts, scripts...)

	v := pageView{PageData: data, Runtime: template.JS(RuntimeScript)}
	if data.Root != nil {
		v.Body = prepare(data.Root)
	}
	if err := pageTemplate.ExecuteTemplate(w, "page", v); err != nil {
		return fmt.Errorf("execute page template: %w", err)
	}
	return nil
}

// RequiredScripts 列出节点树需要的外部脚本，每个最多一次。
func RequiredScripts(ctx context.Context, root *Node) ([]string, error) {
	var scripts []string
	loader := live.NewScriptLoader(func(_ context.Context, src string) error {
		scripts = append(scripts, src)
		return nil
	})
	var err error
	root.Walk(func(n *Node) {
		if err != nil || n.Role != RoleAudio || n.Audio == nil || n.Audio.VideoID == "" {
			return
		}
		err = loader.Load(ctx, live.YouTubeIframeAPI)
	})
	if err != nil {
		return nil, fmt.Errorf("collect scripts: %w", err)
	}
	return scripts, nil
}

// PageTemplateString 是承载渲染树的 HTML 文档。
const PageTemplateString = `<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style>
        html, body { margin: 0; padding: 0; }
        .celebria-doc { box-sizing: border-box; width: 100%; }
        .celebria-frame { flex: none; }
        .celebria-page { box-sizing: border-box; }
        .el-text, .celebria-section { overflow-wrap: anywhere; }
        .el-image { display: block; width: 100%; height: 100%; }
        .el-countdown { display: flex; align-items: center; gap: 8px; }
        .cd-unit { display: flex; flex-direction: column; align-items: center; justify-content: center; padding: 8px 12px; border-radius: 8px; background: rgba(255, 255, 255, 0.7); color: #111827; }
        .cd-num { font-size: 24px; font-weight: 700; }
        .cd-label { font-size: 12px; opacity: 0.7; }
        #celebria-confirm { border: 0; border-radius: 8px; padding: 24px; width: 100%; max-width: 420px; }
        #celebria-confirm::backdrop { background: rgba(0, 0, 0, 0.4); }
        #celebria-confirm input { box-sizing: border-box; width: 100%; margin-bottom: 12px; padding: 8px 12px; border: 1px solid #d1d5db; border-radius: 4px; }
        #celebria-confirm menu { display: flex; justify-content: flex-end; gap: 8px; padding: 0; margin: 16px 0 0; }
    </style>
</head>
<body>
{{if .Body.Node}}{{template "node" .Body}}{{end}}
{{- if .ConfirmAction}}
<dialog id="celebria-confirm" data-action="{{.ConfirmAction}}" data-slug="{{.Slug}}">
    <form method="dialog">
        <h3>Ingresa tu nombre y apellido</h3>
        <input name="name" placeholder="Nombre" autocomplete="given-name">
        <input name="lastName" placeholder="Apellido" autocomplete="family-name">
        <menu>
            <button type="button" data-cancel>Cancelar</button>
            <button type="submit">Confirmar</button>
        </menu>
    </form>
</dialog>
{{- end}}
<script>{{.Runtime}}</script>
{{- range .Scripts}}
<script src="{{.}}"></script>
{{- end}}
</body>
</html>
`
