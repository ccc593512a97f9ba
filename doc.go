/*
go-pitchtrack assigns and maintains persistent identities for soccer players
observed across video frames.  It provides the tracking-and-identity core of
a sports analysis pipeline: per-frame detection-to-track association with a
Kalman motion model, track lifecycle management, appearance based
re-identification against a cross-video gallery, adaptive confidence
thresholding from frame statistics, and a bounded LRU frame-artifact cache.

The library does not run object detection or decode video itself.  A caller
feeds it the detector output (bounding boxes, confidence scores and optional
appearance embeddings) one frame at a time and receives identity-stamped
tracks back.

See the tracker subpackage for the association pipeline and the reid
subpackage for the identity gallery.
*/
package pitchtrack
