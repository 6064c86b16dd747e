package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"orionos/pkg/domain"
	"orionos/pkg/window"
	"orionos/services/desktop/internal/app"
)

type initializeRequest struct {
	Name              string `json:"name"`
	ImageURL          string `json:"imageUrl"`
	ConstellationName string `json:"constellationName"`
	Wallpaper         string `json:"wallpaper"`
}

// handleInitialize provisions the caller's environment. Provisioning runs
// to completion even if the client goes away.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	if !s.allowRate(w, r, s.initLimiter, "initialize:"+s.clientIP(r)) {
		return
	}
	var req initializeRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	env, err := s.app.Provision(detach(r.Context()), identity, domain.Customization{
		Name:              req.Name,
		ImageURL:          req.ImageURL,
		ConstellationName: req.ConstellationName,
		Wallpaper:         req.Wallpaper,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	snap, err := s.app.Snapshot(r.Context(), profile.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleUpdateDesktop(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	var patch app.DesktopPatch
	if err := decodeJSON(r, &patch); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	d, err := s.app.UpdateDesktopSettings(r.Context(), profile.ID, patch)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type workspaceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	items, err := s.app.ListWorkspaces(r.Context(), profile.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"count":  len(items),
		"active": profile.ActiveConstellationID,
	})
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	var req workspaceRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	c, err := s.app.CreateWorkspace(r.Context(), profile.ID, req.Name, req.Description)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	c, err := s.app.GetWorkspace(r.Context(), profile.ID, mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateWorkspace(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	var patch app.WorkspacePatch
	if err := decodeJSON(r, &patch); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	c, err := s.app.UpdateWorkspace(r.Context(), profile.ID, mux.Vars(r)["id"], patch)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	if err := s.app.DeleteWorkspace(r.Context(), profile.ID, mux.Vars(r)["id"]); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSwitchWorkspace(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	snap, err := s.app.SwitchActive(r.Context(), profile.ID, mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleUpdateDock(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	var patch app.DockPatch
	if err := decodeJSON(r, &patch); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	c, err := s.app.UpdateDock(r.Context(), profile.ID, mux.Vars(r)["id"], patch)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleSetWorkspaceFlow(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	var req struct {
		FlowID string `json:"flowId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	c, err := s.app.SetWorkspaceFlow(r.Context(), profile.ID, mux.Vars(r)["id"], req.FlowID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleOpenWindow(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	var req struct {
		InstalledAppID string `json:"installedAppId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	st, err := s.app.OpenWindow(r.Context(), profile.ID, mux.Vars(r)["id"], req.InstalledAppID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type geometryRequest struct {
	Position *domain.Position `json:"position"`
	Size     *domain.Size     `json:"size"`
}

func (req geometryRequest) valid() bool {
	return req.Position != nil && req.Size != nil
}

func (s *Server) handleGeometry(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	var req geometryRequest
	if err := decodeJSON(r, &req); err != nil || !req.valid() {
		badRequest(w, "position and size are required")
		return
	}
	st, err := s.app.UpdateGeometry(r.Context(), profile.ID, mux.Vars(r)["id"], *req.Position, *req.Size)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleFlags(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	var flags window.Flags
	if err := decodeJSON(r, &flags); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	st, err := s.app.SetWindowFlags(r.Context(), profile.ID, mux.Vars(r)["id"], flags)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	var req struct {
		ContentState map[string]any `json:"contentState"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	st, err := s.app.UpdateContentState(r.Context(), profile.ID, mux.Vars(r)["id"], req.ContentState)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	st, err := s.app.CloseWindow(r.Context(), profile.ID, mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	id := mux.Vars(r)["id"]
	if err := s.app.FocusWindow(r.Context(), profile.ID, id); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"focused": id})
}

func (s *Server) handleStageDrag(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	var req geometryRequest
	if err := decodeJSON(r, &req); err != nil || !req.valid() {
		badRequest(w, "position and size are required")
		return
	}
	if err := s.app.StageDrag(r.Context(), profile.ID, mux.Vars(r)["id"], *req.Position, *req.Size); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "staged"})
}

func (s *Server) handleCommitDrag(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	st, err := s.app.CommitDrag(r.Context(), profile.ID, mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	launch, err := s.app.Launch(r.Context(), profile.ID, mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, launch)
}

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request, _ domain.Profile) {
	items, err := s.app.ListApps(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (s *Server) handleRegisterApp(w http.ResponseWriter, r *http.Request) {
	var descriptor domain.App
	if err := decodeJSON(r, &descriptor); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	registered, err := s.app.RegisterApp(r.Context(), descriptor)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registered)
}

func (s *Server) handleListInstalled(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	items, err := s.app.ListInstalledApps(r.Context(), profile.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	var req struct {
		AppName string `json:"appName"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	ia, err := s.app.InstallApp(r.Context(), profile.ID, req.AppName)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ia)
}

func (s *Server) handleUninstall(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	if err := s.app.UninstallApp(r.Context(), profile.ID, mux.Vars(r)["id"]); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "uninstalled"})
}

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	items, err := s.app.ListFlows(r.Context(), profile.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (s *Server) handleCreateFlow(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	var in app.FlowInput
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	flow, err := s.app.CreateFlow(r.Context(), profile.ID, in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, flow)
}

func (s *Server) handleUpdateFlow(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	var patch app.FlowPatch
	if err := decodeJSON(r, &patch); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	flow, err := s.app.UpdateFlow(r.Context(), profile.ID, mux.Vars(r)["id"], patch)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flow)
}

func (s *Server) handleListStreams(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	items, err := s.app.ListStreams(r.Context(), profile.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (s *Server) handleCreateStream(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	stream, err := s.app.CreateStream(r.Context(), profile.ID, req.Name, req.Description)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stream)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	if !s.allowRate(w, r, s.uploadLimiter, "upload:"+profile.ID) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "DESKTOP_FILE_TOO_LARGE", "file too large")
			return
		}
		badRequest(w, "invalid form data")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file is required (field: file)")
		return
	}
	defer file.Close()
	result, err := s.app.Upload(r.Context(), profile.ID, app.UploadInput{
		Endpoint:    mux.Vars(r)["endpoint"],
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	if s.realtime == nil {
		writeError(w, http.StatusServiceUnavailable, "SYSTEM_REALTIME_UNAVAILABLE", "realtime not configured")
		return
	}
	s.realtime.ServeWS(w, r, profile.ID)
}
