package session

import "coinfm/model"

// AudioDevice abstracts the single audio output a session drives.
// Load binds a stream URI to the device; Start begins an asynchronous
// start request whose outcome the device reports back through the
// session's Started/StartFailed/Ended callbacks.
type AudioDevice interface {
	Load(streamURL string) error
	Start() error
	Pause() error
	Resume() error
}

// CommandSink receives playback commands for relaying to a remote player
// surface (the now-playing websocket hub implements this).
type CommandSink interface {
	SendCommand(userID int64, command string, track *model.Track)
}

// Playback commands relayed to remote players.
const (
	CmdLoad   = "load"
	CmdStart  = "start"
	CmdPause  = "pause"
	CmdResume = "resume"
)

// remoteDevice forwards playback commands to whatever player surface the
// user has attached. Start outcomes arrive back as client event reports,
// not synchronously.
type remoteDevice struct {
	userID  int64
	sink    CommandSink
	current *model.Track
}

// NewRemoteDevice creates a device that relays commands through sink.
// sink may be nil; commands are then dropped and only event reports move
// the session forward.
func NewRemoteDevice(userID int64, sink CommandSink) AudioDevice {
	return &remoteDevice{userID: userID, sink: sink}
}

func (d *remoteDevice) send(command string) {
	if d.sink != nil {
		d.sink.SendCommand(d.userID, command, d.current)
	}
}

func (d *remoteDevice) Load(streamURL string) error {
	d.current = &model.Track{StreamURL: streamURL}
	d.send(CmdLoad)
	return nil
}

func (d *remoteDevice) Start() error {
	d.send(CmdStart)
	return nil
}

func (d *remoteDevice) Pause() error {
	d.send(CmdPause)
	return nil
}

func (d *remoteDevice) Resume() error {
	d.send(CmdResume)
	return nil
}
