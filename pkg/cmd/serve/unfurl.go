package serve

import (
	"fmt"
	"html/template"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shoutoutsong/shoutout/pkg/sharestore"
)

var unfurlTemplate = template.Must(template.New("unfurl").Parse(unfurlPage))

type unfurlData struct {
	Title    string
	Subtitle string
	AudioURL string
	PlayURL  string
}

// handleUnfurl renders a tiny page whose only job is to give link
// scrapers Open Graph tags and send humans on to the player. Unknown
// or expired tokens still get a generic preview, scrapers follow
// redirects poorly and an error page makes an ugly card.
func (s *server) handleUnfurl(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	data := unfurlData{
		Title:    sharestore.DefaultTitle,
		Subtitle: sharestore.DefaultSubtitle,
		PlayURL:  fmt.Sprintf("%s/play/%s", s.cfg.FrontendURL, token),
	}
	if record, err := s.store.Get(r.Context(), token); err == nil {
		data.Title = record.Title
		data.Subtitle = record.Subtitle
		data.AudioURL = record.AudioURL
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := unfurlTemplate.Execute(w, data); err != nil {
		log.Println("serve: couldn't render unfurl page:", err)
	}
}

const unfurlPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<meta property="og:type" content="music.song">
<meta property="og:title" content="{{.Title}}">
<meta property="og:description" content="{{.Subtitle}}">
{{if .AudioURL}}<meta property="og:audio" content="{{.AudioURL}}">
{{end}}<meta property="og:url" content="{{.PlayURL}}">
<meta name="twitter:card" content="summary">
<meta name="twitter:title" content="{{.Title}}">
<meta name="twitter:description" content="{{.Subtitle}}">
<meta http-equiv="refresh" content="0;url={{.PlayURL}}">
</head>
<body>
<p>Taking you to your song&hellip; <a href="{{.PlayURL}}">Tap here if nothing happens.</a></p>
<script>window.location.replace({{.PlayURL}});</script>
</body>
</html>
`
