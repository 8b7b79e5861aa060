package web

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/ashdowne/gallery-sync-server/pkg/e"
	"github.com/ashdowne/gallery-sync-server/pkg/s"
)

// ListClients returns all gallery clients. Password hashes never leave the
// struct's json marshalling.
func (h *Handlers) ListClients(c *gin.Context) {
	clients, err := h.Database.ListClients()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list clients")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list clients"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"clients": clients})
}

type CreateClientRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password"`
}

type CreateClientResponse struct {
	Client   s.Client `json:"client"`
	Password string   `json:"password,omitempty"`
}

// CreateClient provisions a client record and their remote delivery folder.
// When no password is supplied one is generated and returned exactly once.
func (h *Handlers) CreateClient(c *gin.Context) {
	var json CreateClientRequest
	if err := c.ShouldBindJSON(&json); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	generated := ""
	password := json.Password
	if password == "" {
		generated = uuid.NewString()
		password = generated
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash client password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create client"})
		return
	}

	folderID, err := h.Remote.CreateClientFolder(c.Request.Context(), json.Username)
	if err != nil {
		log.Error().Err(err).Str("username", json.Username).Msg("Failed to create client folder")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to create client folder"})
		return
	}

	client, err := h.Database.CreateClient(json.Username, string(hash), folderID)
	if err != nil {
		if errors.Is(err, e.ErrClientExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			log.Error().Err(err).Msg("Failed to create client")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create client"})
		}
		return
	}

	c.JSON(http.StatusCreated, CreateClientResponse{Client: client, Password: generated})
}

type UpdateClientRequest struct {
	Username string `json:"username" binding:"required"`
}

// UpdateClient renames a client and their remote delivery folder. The
// folder rename is best-effort; the record is the source of truth.
func (h *Handlers) UpdateClient(c *gin.Context) {
	clientID, err := strconv.Atoi(c.Param("clientid"))
	if err != nil || clientID < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "clientId must be a positive integer"})
		return
	}

	var json UpdateClientRequest
	if err = c.ShouldBindJSON(&json); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, err := h.Database.GetClient(clientID)
	if err != nil {
		if errors.Is(err, e.ErrNoClientFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no client found"})
		} else {
			log.Error().Err(err).Msg("Failed to get client")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update client"})
		}
		return
	}

	if err = h.Database.UpdateClientUsername(clientID, json.Username); err != nil {
		switch {
		case errors.Is(err, e.ErrClientExists):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, e.ErrNoClientFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "no client found"})
		default:
			log.Error().Err(err).Msg("Failed to update client")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update client"})
		}
		return
	}

	if client.FolderID != "" {
		if err = h.Remote.RenameClientFolder(c.Request.Context(), client.FolderID, json.Username); err != nil {
			log.Warn().Err(err).Str("folder", client.FolderID).Msg("Failed to rename client folder")
		}
	}

	client.Username = json.Username
	c.JSON(http.StatusOK, gin.H{"client": client})
}

// DeleteClient removes the client record and best-effort deletes their
// remote folder.
func (h *Handlers) DeleteClient(c *gin.Context) {
	clientID, err := strconv.Atoi(c.Param("clientid"))
	if err != nil || clientID < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "clientId must be a positive integer"})
		return
	}

	client, err := h.Database.GetClient(clientID)
	if err != nil {
		if errors.Is(err, e.ErrNoClientFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no client found"})
		} else {
			log.Error().Err(err).Msg("Failed to get client")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete client"})
		}
		return
	}

	if client.FolderID != "" {
		if err = h.Remote.DeleteClientFolder(c.Request.Context(), client.FolderID); err != nil {
			// The record still goes; a leftover folder is preferable to a
			// dangling credential.
			log.Warn().Err(err).Str("folder", client.FolderID).Msg("Failed to delete client folder")
		}
	}

	if err = h.Database.DeleteClient(clientID); err != nil {
		log.Error().Err(err).Msg("Failed to delete client")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete client"})
		return
	}

	c.Data(http.StatusNoContent, gin.MIMEJSON, nil)
}

type ClientCredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handlers) checkClientCredentials(c *gin.Context) (s.Client, bool) {
	var json ClientCredentialsRequest
	if err := c.ShouldBindJSON(&json); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return s.Client{}, false
	}

	return h.authenticateClient(c, json.Username, json.Password)
}

func (h *Handlers) authenticateClient(c *gin.Context, username, password string) (s.Client, bool) {
	client, err := h.Database.GetClientByUsername(username)
	if err != nil {
		if !errors.Is(err, e.ErrNoClientFound) {
			log.Error().Err(err).Msg("Failed to look up client")
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": e.ErrInvalidCredentials.Error()})
		return s.Client{}, false
	}

	if bcrypt.CompareHashAndPassword([]byte(client.PasswordHash), []byte(password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": e.ErrInvalidCredentials.Error()})
		return s.Client{}, false
	}

	return client, true
}

// resolveClientFolder returns the client's delivery folder id. A missing
// folder mapping is resolved by name and stored back, healing records
// created before the folder existed.
func (h *Handlers) resolveClientFolder(c *gin.Context, client s.Client) (string, bool) {
	if client.FolderID != "" {
		return client.FolderID, true
	}

	folderID, err := h.Remote.FindClientFolder(c.Request.Context(), client.Username)
	if err != nil {
		log.Error().Err(err).Str("username", client.Username).Msg("Failed to resolve client folder")
		c.JSON(http.StatusNotFound, gin.H{"error": "no gallery found"})
		return "", false
	}
	if err = h.Database.UpdateClientFolder(client.ID, folderID); err != nil {
		log.Warn().Err(err).Int("client_id", client.ID).Msg("Failed to store resolved client folder")
	}
	return folderID, true
}

// ValidateClientCredentials is the login check for the client gallery.
func (h *Handlers) ValidateClientCredentials(c *gin.Context) {
	client, ok := h.checkClientCredentials(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "username": client.Username})
}

// ClientGallery lists the files in the authenticated client's remote
// delivery folder.
func (h *Handlers) ClientGallery(c *gin.Context) {
	client, ok := h.checkClientCredentials(c)
	if !ok {
		return
	}
	folderID, ok := h.resolveClientFolder(c, client)
	if !ok {
		return
	}

	files, err := h.Remote.ListClientFiles(c.Request.Context(), folderID)
	if err != nil {
		log.Error().Err(err).Str("folder", folderID).Msg("Failed to list client gallery")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to list gallery"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": files})
}

// ClientGalleryDownload streams the client's whole delivery folder as a zip
// archive. The archive is assembled in memory, matching the fetch-into-memory
// contract of the remote source.
func (h *Handlers) ClientGalleryDownload(c *gin.Context) {
	client, ok := h.checkClientCredentials(c)
	if !ok {
		return
	}
	folderID, ok := h.resolveClientFolder(c, client)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	files, err := h.Remote.ListClientFiles(ctx, folderID)
	if err != nil {
		log.Error().Err(err).Str("folder", folderID).Msg("Failed to list client gallery")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to list gallery"})
		return
	}
	if len(files) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "gallery is empty"})
		return
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, file := range files {
		data, err := h.Remote.FetchFile(ctx, file.ID)
		if err != nil {
			log.Error().Err(err).Str("file", file.Name).Str("remote_id", file.ID).
				Msg("Failed to fetch gallery file")
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch gallery files"})
			return
		}

		w, err := zw.Create(file.Name)
		if err == nil {
			_, err = w.Write(data)
		}
		if err != nil {
			log.Error().Err(err).Str("file", file.Name).Msg("Failed to write zip entry")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build archive"})
			return
		}
	}
	if err = zw.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to finalise zip archive")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build archive"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", client.Username+"-gallery.zip"))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

type ClientFileDownloadRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	FileID   string `json:"fileId" binding:"required"`
}

// ClientGalleryDownloadSingle streams one file from the client's delivery
// folder. The requested id must belong to that folder's listing, so a client
// can never fetch another client's files.
func (h *Handlers) ClientGalleryDownloadSingle(c *gin.Context) {
	var json ClientFileDownloadRequest
	if err := c.ShouldBindJSON(&json); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, ok := h.authenticateClient(c, json.Username, json.Password)
	if !ok {
		return
	}
	folderID, ok := h.resolveClientFolder(c, client)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	files, err := h.Remote.ListClientFiles(ctx, folderID)
	if err != nil {
		log.Error().Err(err).Str("folder", folderID).Msg("Failed to list client gallery")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to list gallery"})
		return
	}

	var target s.RemoteFile
	found := false
	for _, file := range files {
		if file.ID == json.FileID {
			target = file
			found = true
			break
		}
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	data, err := h.Remote.FetchFile(ctx, target.ID)
	if err != nil {
		log.Error().Err(err).Str("file", target.Name).Str("remote_id", target.ID).
			Msg("Failed to fetch gallery file")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch file"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", target.Name))
	c.Data(http.StatusOK, "application/octet-stream", data)
}
