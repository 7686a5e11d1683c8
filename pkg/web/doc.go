// Package web exposes the assistant over HTTP.
//
// Routes:
//
//	GET  /health                  liveness
//	GET  /metrics                 Prometheus, when enabled
//	GET  /diagnose                issue the session cookie
//	POST /ask                     {"question"} -> {"reply"}
//	GET  /api/chat/history        the caller's turns
//	POST /api/chat/reset          forget the caller's turns
//	GET  /ws                      chat over a websocket
//	GET  /api/suggestions         province/hospital autocomplete
//	GET  /api/cities              cities, optionally by province
//	GET  /api/levels              hospital grades
//	POST /api/search              paged hospital search
//	GET  /api/skin/page           encyclopedia entry by page
//	GET  /api/skin/random         random encyclopedia entry
//	GET  /api/disease/{code}      lesion class description
//
// Errors are JSON objects of the form {"error": "..."}.
package web
