package devserver

import (
	"bytes"
	"net/http"
	"strings"
)

const (
	injectLimit  = 512 * 1024
	clientTag    = `<script async src="` + ScriptPath + `"></script>`
	bodyCloseTag = "</body>"
)

// clientScript connects to the SSE endpoint and reacts to reload events.
const clientScript = `(() => {
  if (window.__ASSETBUILDER_LR__) return;
  window.__ASSETBUILDER_LR__ = true;
  function swapCSS(path) {
    let swapped = false;
    document.querySelectorAll('link[rel="stylesheet"]').forEach((link) => {
      const url = new URL(link.href, location.href);
      if (url.pathname !== path) return;
      url.searchParams.set('lr', Date.now());
      link.href = url.toString();
      swapped = true;
    });
    if (!swapped) location.reload();
  }
  function connect() {
    const es = new EventSource('` + EventsPath + `');
    es.onmessage = (e) => {
      try {
        const ev = JSON.parse(e.data);
        if (ev.kind === 'css') { swapCSS(ev.path); return; }
        location.reload();
      } catch (_) {}
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`

// injectScript adds the live-reload client tag before </body> in HTML
// responses. Responses over injectLimit are streamed unchanged.
func injectScript(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if p != "/" && !strings.HasSuffix(p, "/") && !strings.HasSuffix(p, ".html") {
			next.ServeHTTP(w, r)
			return
		}
		inj := &injector{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(inj, r)
		inj.finalize()
	})
}

type injector struct {
	http.ResponseWriter
	status        int
	buf           *bytes.Buffer
	headerWritten bool
	passthrough   bool
}

func (i *injector) WriteHeader(code int) {
	i.status = code
	if i.passthrough {
		i.ResponseWriter.WriteHeader(code)
		i.headerWritten = true
	}
}

func (i *injector) Write(data []byte) (int, error) {
	if i.passthrough {
		return i.ResponseWriter.Write(data)
	}
	if i.buf == nil {
		ct := i.Header().Get("Content-Type")
		if ct != "" && !strings.Contains(ct, "text/html") {
			i.startPassthrough()
			return i.ResponseWriter.Write(data)
		}
		i.buf = &bytes.Buffer{}
	}
	if i.buf.Len()+len(data) > injectLimit {
		i.startPassthrough()
		if _, err := i.ResponseWriter.Write(i.buf.Bytes()); err != nil {
			return 0, err
		}
		return i.ResponseWriter.Write(data)
	}
	return i.buf.Write(data)
}

func (i *injector) startPassthrough() {
	i.passthrough = true
	if i.buf != nil {
		i.Header().Del("Content-Length")
	}
	i.ResponseWriter.WriteHeader(i.status)
	i.headerWritten = true
}

func (i *injector) finalize() {
	if i.passthrough || i.buf == nil {
		if !i.headerWritten {
			i.ResponseWriter.WriteHeader(i.status)
		}
		return
	}
	body := i.buf.Bytes()
	if idx := bytes.LastIndex(body, []byte(bodyCloseTag)); idx >= 0 {
		out := make([]byte, 0, len(body)+len(clientTag))
		out = append(out, body[:idx]...)
		out = append(out, clientTag...)
		body = append(out, body[idx:]...)
	}
	i.Header().Del("Content-Length")
	i.ResponseWriter.WriteHeader(i.status)
	_, _ = i.ResponseWriter.Write(body)
}
