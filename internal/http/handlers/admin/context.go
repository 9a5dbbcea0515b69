package admin

import (
	"github.com/gin-gonic/gin"

	handlershared "github.com/dispatchdesk/internal/http/handlers/shared"
	"github.com/dispatchdesk/internal/service"
)

func getAdminID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, "admin_id")
}

func getAdminRole(c *gin.Context) string {
	return handlershared.GetContextString(c, "admin_role")
}

func getActor(c *gin.Context) (service.Actor, bool) {
	adminID, ok := getAdminID(c)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{AdminID: adminID, Role: getAdminRole(c)}, true
}
