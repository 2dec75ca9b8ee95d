package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/ceramicnetwork/go-callpush/models"
)

type DirectoryService struct {
	gateway       models.PushGateway
	metricService models.MetricService
	logger        models.Logger
}

func NewDirectoryService(logger models.Logger, gateway models.PushGateway, metricService models.MetricService) *DirectoryService {
	return &DirectoryService{gateway, metricService, logger}
}

// Register reconciles the endpoint directory with a device registration and returns the users found in the room.
//
// Every endpoint is classified against the request, first match wins:
//   - same token, user and room: already registered, nothing to do
//   - same token, different user: the device moved to another user, delete
//   - same user, different room: the user moved to another room, delete
//   - same room: a peer, collect its user
//
// A new endpoint is created unless the exact registration already exists, so repeating a call performs no writes. The
// caller is only listed in users when its endpoint is created. The list-then-mutate sequence is not atomic: concurrent
// registrations of the same token can both create an endpoint.
func (d DirectoryService) Register(ctx context.Context, deviceToken, userId, roomId string) (*models.RoomMembership, error) {
	if len(deviceToken) == 0 {
		return nil, &models.ValidationError{Field: "deviceToken", Reason: "required"}
	}
	endpoints, err := d.gateway.ListEndpoints(ctx)
	if err != nil {
		return nil, err
	}
	d.metricService.Distribution(ctx, models.MetricName_DirectorySize, len(endpoints))

	users := models.NewUserSet()
	alreadyRegistered := false
	for _, endpoint := range endpoints {
		epUserId := endpoint.UserData.UserId
		epRoomId := string(endpoint.UserData.RoomId)
		if endpoint.Token == deviceToken && epUserId == userId && epRoomId == roomId {
			alreadyRegistered = true
		} else if endpoint.Token == deviceToken && epUserId != userId {
			d.logger.Infof("register: removing endpoint %s, device re-registered from %q to %q", endpoint.Handle, epUserId, userId)
			if err = d.deleteEndpoint(ctx, endpoint.Handle); err != nil {
				return nil, err
			}
		} else if epUserId == userId && epRoomId != roomId {
			d.logger.Infof("register: removing endpoint %s, user %q moved from room %q to %q", endpoint.Handle, userId, epRoomId, roomId)
			if err = d.deleteEndpoint(ctx, endpoint.Handle); err != nil {
				return nil, err
			}
		} else if epRoomId == roomId {
			users.Add(epUserId)
		}
	}

	if !alreadyRegistered {
		userData := models.UserData{UserId: userId, RoomId: models.RoomId(roomId)}
		if handle, err := d.gateway.CreateEndpoint(ctx, deviceToken, userData); err != nil {
			return nil, err
		} else {
			d.logger.Infof("register: created endpoint %s for user %q in room %q", handle, userId, roomId)
			d.metricService.Count(ctx, models.MetricName_EndpointCreated, 1)
		}
		users.Add(userId)
	}
	return &models.RoomMembership{
		UserId: userId,
		RoomId: models.RoomId(roomId),
		Users:  users.Users(),
	}, nil
}

func (d DirectoryService) deleteEndpoint(ctx context.Context, handle string) error {
	if err := d.gateway.DeleteEndpoint(ctx, handle); err != nil {
		return err
	}
	d.metricService.Count(ctx, models.MetricName_EndpointDeleted, 1)
	return nil
}

// FetchRoomUsers returns the distinct, non-empty users with an endpoint in the room
func (d DirectoryService) FetchRoomUsers(ctx context.Context, roomId string) (*models.RoomMembership, error) {
	endpoints, err := d.gateway.ListEndpoints(ctx)
	if err != nil {
		return nil, err
	}
	users := models.NewUserSet()
	for _, endpoint := range endpoints {
		if string(endpoint.UserData.RoomId) == roomId {
			users.Add(endpoint.UserData.UserId)
		}
	}
	return &models.RoomMembership{RoomId: models.RoomId(roomId), Users: users.Users()}, nil
}

func (d DirectoryService) PushToUsers(ctx context.Context, userIds []string, message string) (int, error) {
	targets := make(map[string]bool, len(userIds))
	for _, userId := range userIds {
		targets[userId] = true
	}
	return d.push(ctx, message, func(endpoint *models.Endpoint) bool {
		return targets[endpoint.UserData.UserId]
	})
}

func (d DirectoryService) PushToRoom(ctx context.Context, roomId, message string) (int, error) {
	return d.push(ctx, message, func(endpoint *models.Endpoint) bool {
		return string(endpoint.UserData.RoomId) == roomId
	})
}

// push publishes the message to every endpoint accepted by the filter. A failed publish does not stop delivery to the
// remaining endpoints. The returned error aggregates every individual failure, and the count is the number of
// successful deliveries.
func (d DirectoryService) push(ctx context.Context, message string, filter func(*models.Endpoint) bool) (int, error) {
	endpoints, err := d.gateway.ListEndpoints(ctx)
	if err != nil {
		return 0, err
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	var pushErr error
	numSent := 0
	for _, endpoint := range endpoints {
		if !filter(endpoint) {
			continue
		}
		ep := endpoint
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.gateway.Publish(ctx, ep.Handle, message)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				pushErr = multierr.Append(pushErr, fmt.Errorf("push to user %q (%s): %w", ep.UserData.UserId, ep.Handle, err))
				return
			}
			numSent++
		}()
	}
	wg.Wait()

	numFailed := len(multierr.Errors(pushErr))
	if numSent > 0 {
		d.metricService.Count(ctx, models.MetricName_PushSent, numSent)
	}
	if numFailed > 0 {
		d.metricService.Count(ctx, models.MetricName_PushFailed, numFailed)
		d.logger.Errorf("push: %d of %d pushes failed: %v", numFailed, numSent+numFailed, pushErr)
	}
	return numSent, pushErr
}
