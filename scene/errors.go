package scene

const (
	ErrTypeObjectAttached    = "scene_object_attached"
	ErrTypeObjectNotAttached = "scene_object_not_attached"
)
