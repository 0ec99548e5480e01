// Package wire defines the message model shared by master, workers, and submitters.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package wire

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ReadySKAHF/gaussnet/cmn/cos"
	jsoniter "github.com/json-iterator/go"
)

// message kinds
const (
	ImageRequest    MsgType = iota // 0: submitter => master => worker
	ImageResponse                  // 1: worker => master => submitter
	SlaveRegister                  // 2: worker => master
	Acknowledgment                 // 3: master => worker
	SlaveStatistics                // 4: worker => master
)

const AckBody = "OK"

type (
	MsgType int

	// Msg is the wire unit: every frame body is the JSON serialization of a Msg.
	// SenderIp and SenderPort are NOT trusted from the wire - the receiving side
	// overwrites them from the connection's remote endpoint.
	Msg struct {
		Type       MsgType   `json:"Type"`
		Data       []byte    `json:"Data"` // base64-encoded payload (the per-kind sub-body)
		MessageID  string    `json:"MessageId"`
		SenderIP   string    `json:"SenderIp"`
		SenderPort int       `json:"SenderPort"`
		Timestamp  time.Time `json:"Timestamp"`
	}

	// ImagePacket is the body of ImageRequest and ImageResponse.
	ImagePacket struct {
		PacketID   string `json:"PacketId"`
		FileName   string `json:"FileName"`
		ImageData  []byte `json:"ImageData"`
		Width      int    `json:"Width"`
		Height     int    `json:"Height"`
		Format     string `json:"Format"`
		FilterSize int    `json:"FilterSize"`
		SlavePort  int    `json:"SlavePort"` // response only: the worker's advertised port
	}

	// RegistrationData is the body of SlaveRegister.
	RegistrationData struct {
		IPAddress string `json:"IpAddress"`
		Port      int    `json:"Port"`
	}

	// Stats is the body of SlaveStatistics. Durations are in seconds.
	Stats struct {
		Port                  int     `json:"Port"`
		TasksCompleted        int64   `json:"TasksCompleted"`
		TotalProcessingTime   float64 `json:"TotalProcessingTime"`
		AverageProcessingTime float64 `json:"AverageProcessingTime"`
	}
)

var msgTypeNames = [...]string{"ImageRequest", "ImageResponse", "SlaveRegister", "Acknowledgment", "SlaveStatistics"}

func (t MsgType) String() string {
	if int(t) < len(msgTypeNames) {
		return msgTypeNames[t]
	}
	return "MsgType(" + strconv.Itoa(int(t)) + ")"
}

func (t MsgType) MarshalJSON() ([]byte, error) { return []byte(strconv.Itoa(int(t))), nil }

// The decoder accepts both encodings: integer and string (name or numeric).
func (t *MsgType) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("empty message type")
	}
	if b[0] == '"' {
		var s string
		if err := jsoniter.Unmarshal(b, &s); err != nil {
			return err
		}
		for i, name := range msgTypeNames {
			if name == s {
				*t = MsgType(i)
				return nil
			}
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("unknown message type %q", s)
		}
		*t = MsgType(i)
		return nil
	}
	i, err := strconv.Atoi(string(b))
	if err != nil {
		return err
	}
	*t = MsgType(i)
	return nil
}

// NewMsg mints a message with a fresh unique identifier.
func NewMsg(t MsgType, payload []byte) *Msg {
	return &Msg{
		Type:      t,
		Data:      payload,
		MessageID: cos.GenUUID(),
		Timestamp: time.Now(),
	}
}

func NewAck() *Msg { return NewMsg(Acknowledgment, []byte(AckBody)) }

func NewImageRequest(packet *ImagePacket) *Msg {
	return NewMsg(ImageRequest, cos.MustMarshal(packet))
}

func NewImageResponse(packet *ImagePacket) *Msg {
	return NewMsg(ImageResponse, cos.MustMarshal(packet))
}

func NewRegistration(ip string, port int) *Msg {
	return NewMsg(SlaveRegister, cos.MustMarshal(&RegistrationData{IPAddress: ip, Port: port}))
}

func NewStats(s *Stats) *Msg { return NewMsg(SlaveStatistics, cos.MustMarshal(s)) }

func (m *Msg) String() string {
	return fmt.Sprintf("msg[%s id=%s len=%d]", m.Type, m.MessageID, len(m.Data))
}

// SetSender overwrites the sender fields from the observed remote endpoint.
func (m *Msg) SetSender(ip string, port int) { m.SenderIP, m.SenderPort = ip, port }

func (m *Msg) IsAck() bool { return m.Type == Acknowledgment && string(m.Data) == AckBody }

//
// payload decoding
//

func (m *Msg) Packet() (*ImagePacket, error) {
	packet := &ImagePacket{}
	if err := cos.MorphUnmarshal(m.Data, packet); err != nil {
		return nil, fmt.Errorf("%s: bad image packet: %v", m, err)
	}
	return packet, nil
}

func (m *Msg) Registration() (*RegistrationData, error) {
	reg := &RegistrationData{}
	if err := cos.MorphUnmarshal(m.Data, reg); err != nil {
		return nil, fmt.Errorf("%s: bad registration: %v", m, err)
	}
	return reg, nil
}

func (m *Msg) Stats() (*Stats, error) {
	stats := &Stats{}
	if err := cos.MorphUnmarshal(m.Data, stats); err != nil {
		return nil, fmt.Errorf("%s: bad statistics: %v", m, err)
	}
	return stats, nil
}
