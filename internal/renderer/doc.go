// Package renderer composes the per-view mirror state: the line cache, the
// viewport synchronizer, and the backend-reported pristine flag. The draw
// layer pulls from it; the renderer never calls into the draw layer.
package renderer
