// Package chartdata shapes a hole's samples into the JSON payloads
// behind the visualization views.
//
// The package is purely computational: it does no I/O and no logging.
// Callers load the hole (internal/dataprocessing) and pick the view;
// the builders here return ready-to-marshal chart models from
// pkg/contracts/domain.
//
// Files:
//   - builder.go: timeseries and scatter views
//   - distribution.go: histogram and box views, quartile math
//
// Every builder drops samples whose relevant cell failed numeric
// coercion (NaN), so the models marshal cleanly with encoding/json.
package chartdata
