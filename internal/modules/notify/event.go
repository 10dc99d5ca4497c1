// README: Notification events emitted by route and assignment workflows.
package notify

import (
	"fmt"
	"time"

	"routedesk/internal/types"
)

type Kind string

const (
	KindRouteImported  Kind = "route.imported"
	KindImportRejected Kind = "route.import_rejected"
	KindImportFailed   Kind = "route.import_failed"
	KindRoutesDeleted  Kind = "route.deleted"
	KindRouteClaimed   Kind = "assignment.claimed"
	KindClaimApproved  Kind = "assignment.approved"
	KindClaimRejected  Kind = "assignment.rejected"
)

type Audience string

const (
	AudienceAdmins Audience = "admins"
	AudienceDriver Audience = "driver"
)

type Event struct {
	Kind     Kind       `json:"kind"`
	Title    string     `json:"title"`
	Message  string     `json:"message"`
	Audience Audience   `json:"audience"`
	DriverID types.ID   `json:"driver_id,omitempty"`
	RouteIDs []types.ID `json:"route_ids,omitempty"`
	At       time.Time  `json:"at"`
}

func RouteImported(id types.ID, name string) Event {
	return Event{
		Kind:     KindRouteImported,
		Title:    "Rota importada",
		Message:  fmt.Sprintf("A rota %s foi importada.", name),
		Audience: AudienceAdmins,
		RouteIDs: []types.ID{id},
		At:       time.Now(),
	}
}

func ImportRejected(name string, existing types.ID) Event {
	return Event{
		Kind:     KindImportRejected,
		Title:    "Importação recusada",
		Message:  fmt.Sprintf("A rota %s já existe para este turno e data.", name),
		Audience: AudienceAdmins,
		RouteIDs: []types.ID{existing},
		At:       time.Now(),
	}
}

func ImportFailed(file string, err error) Event {
	return Event{
		Kind:     KindImportFailed,
		Title:    "Falha na importação",
		Message:  fmt.Sprintf("Não foi possível importar %s: %v", file, err),
		Audience: AudienceAdmins,
		At:       time.Now(),
	}
}

func RoutesDeleted(ids []types.ID) Event {
	msg := "1 rota foi excluída."
	if len(ids) != 1 {
		msg = fmt.Sprintf("%d rotas foram excluídas.", len(ids))
	}
	return Event{
		Kind:     KindRoutesDeleted,
		Title:    "Rotas excluídas",
		Message:  msg,
		Audience: AudienceAdmins,
		RouteIDs: ids,
		At:       time.Now(),
	}
}

func RouteClaimed(routeID types.ID, routeName, driverName string) Event {
	return Event{
		Kind:     KindRouteClaimed,
		Title:    "Nova solicitação de rota",
		Message:  fmt.Sprintf("%s solicitou a rota %s.", driverName, routeName),
		Audience: AudienceAdmins,
		RouteIDs: []types.ID{routeID},
		At:       time.Now(),
	}
}

func ClaimApproved(driverID, routeID types.ID, routeName string) Event {
	return Event{
		Kind:     KindClaimApproved,
		Title:    "Rota aprovada",
		Message:  fmt.Sprintf("Sua solicitação para a rota %s foi aprovada.", routeName),
		Audience: AudienceDriver,
		DriverID: driverID,
		RouteIDs: []types.ID{routeID},
		At:       time.Now(),
	}
}

func ClaimRejected(driverID, routeID types.ID, routeName string) Event {
	return Event{
		Kind:     KindClaimRejected,
		Title:    "Rota recusada",
		Message:  fmt.Sprintf("Sua solicitação para a rota %s foi recusada.", routeName),
		Audience: AudienceDriver,
		DriverID: driverID,
		RouteIDs: []types.ID{routeID},
		At:       time.Now(),
	}
}
