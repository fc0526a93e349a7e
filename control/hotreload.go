// control/hotreload.go
// Reload listener list used by ConfigStore.

package control

type reloadHooks []func(changed map[string]any)

func (h reloadHooks) clone() reloadHooks {
	return append(reloadHooks(nil), h...)
}

// dispatch runs every hook synchronously, in registration order.
func (h reloadHooks) dispatch(changed map[string]any) {
	for _, fn := range h {
		fn(changed)
	}
}
