package main

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/gridpath/systems"
	ierrors "github.com/gridpath/systems/kit/errors"
)

// rpcHandler exposes the registry service as a single JSON endpoint. Each
// request names a method and carries the caller identity resolved by the
// gateway; REST routing and schema validation happen upstream.
type rpcHandler struct {
	log *zap.Logger
	svc systems.SystemsService
}

func newRPCHandler(log *zap.Logger, svc systems.SystemsService) *rpcHandler {
	return &rpcHandler{log: log, svc: svc}
}

type rpcRequest struct {
	Method string                 `json:"method"`
	Caller systems.CallerIdentity `json:"caller"`

	SystemID   string                `json:"systemId,omitempty"`
	System     *systems.System       `json:"system,omitempty"`
	Update     *systems.SystemUpdate `json:"update,omitempty"`
	Credential *systems.Credential   `json:"credential,omitempty"`
	TargetUser string                `json:"targetUser,omitempty"`
	NewOwner   string                `json:"newOwner,omitempty"`
	Perms      []systems.Permission  `json:"perms,omitempty"`
	Method2    systems.AuthnMethod   `json:"authnMethod,omitempty"`
	RawRequest string                `json:"rawRequest,omitempty"`

	IncludeDeleted    bool                `json:"includeDeleted,omitempty"`
	ReturnCredentials bool                `json:"returnCredentials,omitempty"`
	RequireExecPerm   bool                `json:"requireExecPerm,omitempty"`
	FindOptions       systems.FindOptions `json:"findOptions,omitempty"`
}

func (h *rpcHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErr(w, &ierrors.Error{Code: ierrors.EInvalid, Msg: "malformed request body", Err: err})
		return
	}

	result, err := h.dispatch(r, &req)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"result": result}); err != nil {
		h.log.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *rpcHandler) dispatch(r *http.Request, req *rpcRequest) (interface{}, error) {
	ctx := r.Context()

	switch req.Method {
	case "createSystem":
		if req.System == nil {
			return nil, &ierrors.Error{Code: ierrors.EInvalid, Msg: "system is required"}
		}
		return h.svc.CreateSystem(ctx, req.Caller, systems.CreateSystemRequest{
			System:     req.System,
			Credential: req.Credential,
			RawRequest: req.RawRequest,
		})
	case "getSystem":
		return h.svc.GetSystem(ctx, req.Caller, req.SystemID, systems.GetSystemOptions{
			IncludeDeleted:    req.IncludeDeleted,
			ReturnCredentials: req.ReturnCredentials,
			Method:            req.Method2,
			RequireExecPerm:   req.RequireExecPerm,
		})
	case "listSystems":
		return h.svc.ListSystems(ctx, req.Caller, systems.SystemFilter{
			IncludeDeleted: req.IncludeDeleted,
		}, req.FindOptions)
	case "patchSystem":
		if req.Update == nil {
			return nil, &ierrors.Error{Code: ierrors.EInvalid, Msg: "update is required"}
		}
		return h.svc.PatchSystem(ctx, req.Caller, req.SystemID, *req.Update, req.RawRequest)
	case "putSystem":
		if req.System == nil {
			return nil, &ierrors.Error{Code: ierrors.EInvalid, Msg: "system is required"}
		}
		return h.svc.PutSystem(ctx, req.Caller, req.SystemID, req.System, req.RawRequest)
	case "enableSystem":
		return h.svc.EnableSystem(ctx, req.Caller, req.SystemID)
	case "disableSystem":
		return h.svc.DisableSystem(ctx, req.Caller, req.SystemID)
	case "deleteSystem":
		return h.svc.SoftDeleteSystem(ctx, req.Caller, req.SystemID)
	case "undeleteSystem":
		return h.svc.UndeleteSystem(ctx, req.Caller, req.SystemID)
	case "hardDeleteSystem":
		return nil, h.svc.HardDeleteSystem(ctx, req.Caller, req.SystemID)
	case "changeSystemOwner":
		return h.svc.ChangeSystemOwner(ctx, req.Caller, req.SystemID, req.NewOwner)
	case "grantUserPerms":
		return nil, h.svc.GrantUserPerms(ctx, req.Caller, req.SystemID, req.TargetUser, req.Perms, req.RawRequest)
	case "revokeUserPerms":
		return h.svc.RevokeUserPerms(ctx, req.Caller, req.SystemID, req.TargetUser, req.Perms, req.RawRequest)
	case "getUserPerms":
		set, err := h.svc.GetUserPerms(ctx, req.Caller, req.SystemID, req.TargetUser)
		if err != nil {
			return nil, err
		}
		return set.Slice(), nil
	case "setUserCredential":
		return nil, h.svc.SetUserCredential(ctx, req.Caller, req.SystemID, req.TargetUser, req.Credential, req.RawRequest)
	case "removeUserCredential":
		return nil, h.svc.RemoveUserCredential(ctx, req.Caller, req.SystemID, req.TargetUser)
	case "getUserCredential":
		return h.svc.GetUserCredential(ctx, req.Caller, req.SystemID, req.TargetUser, req.Method2)
	default:
		return nil, &ierrors.Error{Code: ierrors.EInvalid, Msg: "unknown method " + req.Method}
	}
}

func (h *rpcHandler) writeErr(w http.ResponseWriter, err error) {
	code := ierrors.ErrorCode(err)

	status := http.StatusInternalServerError
	switch code {
	case ierrors.EInvalid, ierrors.EInvalidState:
		status = http.StatusBadRequest
	case ierrors.ENotFound:
		status = http.StatusNotFound
	case ierrors.EConflict:
		status = http.StatusConflict
	case ierrors.EUnauthorized:
		status = http.StatusForbidden
	case ierrors.EDelegate, ierrors.EUnavailable:
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": ierrors.ErrorMessage(err),
	})
}
