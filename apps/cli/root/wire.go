package root

import (
	provisioncmd "github.com/nimbuserp/nimbus-saas/apps/cli/cmd/provision"
	tokencmd "github.com/nimbuserp/nimbus-saas/apps/cli/cmd/token"
)

func init() {
	Root().AddCommand(provisioncmd.Command())
	Root().AddCommand(tokencmd.Command())
}
